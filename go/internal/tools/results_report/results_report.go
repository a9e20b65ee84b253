package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/trivia/go/internal/dbconfig"
)

// game is one finished game with its winner
type game struct {
	SessionID  string
	FinishedAt time.Time
	Players    int
	Winner     string
	TopScore   int
}

// questionStat is how a question went across every game it was played in
type questionStat struct {
	QuestionID string
	Text       string
	Played     int
	Answered   int
	Correct    int
}

func (q questionStat) accuracy() float64 {
	if q.Answered == 0 {
		return 0
	}
	return float64(q.Correct) / float64(q.Answered) * 100
}

func main() {
	games := flag.Int("games", 10, "number of recent games to list")
	hardest := flag.Int("questions", 10, "number of hardest questions to list")
	flag.Parse()

	ctx := context.Background()

	// 1) Connect using shared dbconfig
	cfg, err := dbconfig.NewConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 2) Recent games
	recent, err := recentGames(ctx, pool, *games)
	if err != nil {
		fmt.Fprintf(os.Stderr, "recent games: %v\n", err)
		os.Exit(1)
	}

	// 3) Hardest questions
	stats, err := hardestQuestions(ctx, pool, *hardest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "question stats: %v\n", err)
		os.Exit(1)
	}

	// 4) Print report
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FINISHED\tSESSION\tPLAYERS\tWINNER\tSCORE")
	for _, g := range recent {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\n",
			g.FinishedAt.Local().Format(time.DateTime), g.SessionID, g.Players, g.Winner, g.TopScore)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "QUESTION\tPLAYED\tANSWERED\tCORRECT %\tTEXT")
	for _, q := range stats {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.0f\t%s\n", q.QuestionID, q.Played, q.Answered, q.accuracy(), q.Text)
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "write report: %v\n", err)
		os.Exit(1)
	}
}

func recentGames(ctx context.Context, pool *pgxpool.Pool, limit int) ([]game, error) {
	rows, err := pool.Query(ctx, `
		SELECT session_id, MAX(finished_at), COUNT(*),
		       MIN(name) FILTER (WHERE rank = 1), MAX(score)
		FROM final_scores
		GROUP BY session_id
		ORDER BY MAX(finished_at) DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (game, error) {
		var g game
		var winner *string
		err := row.Scan(&g.SessionID, &g.FinishedAt, &g.Players, &winner, &g.TopScore)
		if winner != nil {
			g.Winner = *winner
		}
		return g, err
	})
}

func hardestQuestions(ctx context.Context, pool *pgxpool.Pool, limit int) ([]questionStat, error) {
	rows, err := pool.Query(ctx, `
		SELECT question_id, MAX(text), COUNT(*),
		       SUM(answered_count)::int, SUM(correct_count)::int
		FROM question_results
		GROUP BY question_id
		ORDER BY SUM(correct_count)::float / GREATEST(SUM(answered_count), 1), COUNT(*) DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[questionStat])
}
