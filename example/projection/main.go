// Command projection demonstrates folding a persisted stream into state
// with the query engine: it appends a handful of bank-account events to a
// mysql-backed EventStore, then runs a Query twice to show that Reset
// followed by Run reproduces the same result, and that a handler calling
// Stop partway through a stream leaves the cursor resumable.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"

	"github.com/streamvault/streamvault"
	"github.com/streamvault/streamvault/driver/sql/mysql"
	logrusadapter "github.com/streamvault/streamvault/extension/logrus"
	"github.com/streamvault/streamvault/metadata"
	"github.com/streamvault/streamvault/query"
)

func main() {
	db, err := sql.Open("mysql", "streamvault:streamvault@tcp(localhost:3306)/streamvault?parseTime=false")
	if err != nil {
		panic(err)
	}
	defer db.Close()

	store, err := mysql.NewEventStore(db, mysql.NewSingleStreamStrategy(), mysql.WithLogger(logrusadapter.Wrap(logrus.StandardLogger())))
	if err != nil {
		panic(err)
	}

	ctx := context.Background()
	if err := store.EnsureEventStreamsTable(ctx); err != nil {
		panic(err)
	}

	streamName := streamvault.StreamName("account-demo")
	if !store.HasStream(ctx, streamName) {
		if err := store.Create(ctx, streamName, nil, seedEvents()); err != nil {
			panic(err)
		}
	}

	balance := balanceProjection(store, streamName)

	if err := balance.Run(ctx); err != nil {
		panic(err)
	}
	fmt.Printf("balance after first run: %v\n", balance.State()["balance"])

	balance.Reset()
	if err := balance.Run(ctx); err != nil {
		panic(err)
	}
	fmt.Printf("balance after reset+run: %v\n", balance.State()["balance"])

	credits := creditCountProjection(store, streamName)
	if err := credits.Run(ctx); err != nil {
		panic(err)
	}
	fmt.Printf("credits seen before stop: %v\n", credits.State()["credits"])

	// A following Run resumes after the event that called Stop rather than
	// reprocessing the whole stream.
	if err := credits.Run(ctx); err != nil {
		panic(err)
	}
	fmt.Printf("credits seen after resuming: %v\n", credits.State()["credits"])
}

// balanceProjection folds account_credited/account_debited events into a
// running balance, demonstrating When's per-message-name dispatch.
func balanceProjection(store streamvault.ReadOnlyEventStore, streamName streamvault.StreamName) *query.Query {
	init := func() query.State {
		return query.State{"balance": int64(0)}
	}

	return query.New(store, init).
		FromStream(streamName).
		When(map[string]query.Handler{
			"account_credited": func(state query.State, event streamvault.Message, _ int64) query.State {
				amount, _ := event.Payload().(map[string]interface{})["amount"].(float64)
				state["balance"] = state["balance"].(int64) + int64(amount)
				return state
			},
			"account_debited": func(state query.State, event streamvault.Message, _ int64) query.State {
				amount, _ := event.Payload().(map[string]interface{})["amount"].(float64)
				state["balance"] = state["balance"].(int64) - int64(amount)
				return state
			},
		})
}

// creditCountProjection counts credits with WhenAny, stopping cooperatively
// once it has seen three - demonstrating Stop and cursor resume.
func creditCountProjection(store streamvault.ReadOnlyEventStore, streamName streamvault.StreamName) *query.Query {
	init := func() query.State {
		return query.State{"credits": 0}
	}

	var q *query.Query
	q = query.New(store, init).
		FromStream(streamName).
		WhenAny(func(state query.State, event streamvault.Message, _ int64) query.State {
			if event.MessageName() != "account_credited" {
				return state
			}
			count := state["credits"].(int) + 1
			state["credits"] = count
			if count >= 3 {
				q.Stop()
			}
			return state
		})
	return q
}

func seedEvents() []streamvault.Message {
	now := time.Now()
	events := []struct {
		name   string
		amount uint
	}{
		{"account_opened", 0},
		{"account_credited", 100},
		{"account_credited", 50},
		{"account_debited", 30},
		{"account_credited", 20},
		{"account_debited", 10},
	}

	messages := make([]streamvault.Message, 0, len(events))
	for _, e := range events {
		payload := map[string]interface{}{}
		if e.amount > 0 {
			payload["amount"] = e.amount
		}
		messages = append(messages, streamvault.NewEventEnvelope(
			streamvault.GenerateUUID(),
			e.name,
			payload,
			metadata.Metadata{
				metadata.AggregateType: "bank_account",
				metadata.AggregateID:   "demo",
			},
			now,
		))
	}
	return messages
}
