package events

// Event payloads shared by the authority, the gateway and the Go client

// UserConnectPayload is sent by a player joining the session
type UserConnectPayload struct {
	Name string `json:"name"`
}

// UserAnsweredPayload carries a player's answer index. Answer is nil when
// the frame left it out.
type UserAnsweredPayload struct {
	Answer *int `json:"answer"`
}

// AnswerOf builds the payload for answer index i
func AnswerOf(i int) UserAnsweredPayload {
	return UserAnsweredPayload{Answer: &i}
}

// UserConnectedPayload announces a player and their current score
type UserConnectedPayload struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// UserDisconnectedPayload announces a player leaving
type UserDisconnectedPayload struct {
	Name string `json:"name"`
}

// QuestionPayload opens a question. It never carries the answer key.
type QuestionPayload struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Answers []string `json:"answers"`
	Photo   string   `json:"photo,omitempty"`
	Time    int      `json:"time"`
}

// UserResult is one player's answer in a closed question
type UserResult struct {
	User    string `json:"user"`
	Answer  int    `json:"answer"`
	Correct bool   `json:"correct"`
}

// QuestionAnsweredPayload closes a question and reveals the correct answer
type QuestionAnsweredPayload struct {
	ID            string       `json:"id"`
	Question      string       `json:"question"`
	Answers       []string     `json:"answers"`
	CorrectAnswer int          `json:"correctAnswer"`
	Users         []UserResult `json:"users"`
}

// TimeLeftPayload is the countdown tick
type TimeLeftPayload struct {
	Time int `json:"time"`
}

// Standing is a leaderboard row
type Standing struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// DisplayUserAnsweredPayload tells the display who answered, not what
type DisplayUserAnsweredPayload struct {
	Name string `json:"name"`
}

// GameInvalidPayload explains a rejected action to the sender
type GameInvalidPayload struct {
	Reason string `json:"reason"`
}

// GameOverPayload closes a game with the final standings
type GameOverPayload struct {
	Leaderboard []Standing `json:"leaderboard"`
}

// SessionRegeneratePayload tells clients their session is gone and they must reconnect
type SessionRegeneratePayload struct {
	Reason string `json:"reason,omitempty"`
}
