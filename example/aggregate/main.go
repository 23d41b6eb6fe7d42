// Command aggregate demonstrates recording domain events against an
// aggregate root and persisting them through a postgres-backed EventStore.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/streamvault/streamvault"
	"github.com/streamvault/streamvault/aggregate"
	"github.com/streamvault/streamvault/driver/sql/postgres"
	zapadapter "github.com/streamvault/streamvault/extension/zap"
	"github.com/streamvault/streamvault/metadata"
)

var (
	// ErrInsufficientMoney occurs when a bank account has insufficient funds.
	ErrInsufficientMoney = errors.New("insufficient money")
	// Ensure BankAccount implements the aggregate.Root interface.
	_ aggregate.Root = &BankAccount{}
)

type (
	// BankAccount is a simple aggregate root tracking a balance.
	BankAccount struct {
		aggregate.BaseRoot

		accountID aggregate.ID
		balance   uint
	}

	// AccountOpened indicates that a bank account was opened.
	AccountOpened struct {
		AccountID aggregate.ID `json:"account_id"`
	}

	// AccountCredited indicates that a bank account was credited.
	AccountCredited struct {
		Amount uint `json:"amount"`
	}

	// AccountDebited indicates that a bank account was debited.
	AccountDebited struct {
		Amount uint `json:"amount"`
	}
)

func main() {
	db, err := sql.Open("postgres", "postgres://localhost/streamvault?sslmode=disable")
	if err != nil {
		panic(err)
	}
	defer db.Close()

	zapLogger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer zapLogger.Sync() //nolint:errcheck

	store, err := postgres.NewEventStore(db, postgres.NewAggregateStreamStrategy(), postgres.WithLogger(zapadapter.Wrap(zapLogger)))
	if err != nil {
		panic(err)
	}

	ctx := context.Background()
	if err := store.EnsureEventStreamsTable(ctx); err != nil {
		panic(err)
	}

	account, err := OpenBankAccount()
	if err != nil {
		panic(err)
	}

	if err := account.Deposit(100); err != nil {
		panic(err)
	}
	if err := account.Withdraw(10); err != nil {
		panic(err)
	}
	if err := account.Withdraw(20); err != nil {
		panic(err)
	}

	streamName := streamvault.StreamName("account-" + string(account.AggregateID()))
	if err := store.Create(ctx, streamName, nil, toMessages(account, account.UncommittedEvents())); err != nil {
		panic(err)
	}
	account.ClearUncommittedEvents()

	fmt.Printf("BankAccount %s has a balance of %d\n", account.AggregateID(), account.Balance())
}

// toMessages wraps an aggregate's uncommitted changes as EventEnvelopes
// ready for EventStore.Create/AppendTo, stamping each with the aggregate
// metadata triple; the aggregate-stream persistence strategy takes each
// row's "no" from the _aggregate_version entry.
func toMessages(account *BankAccount, changes []*aggregate.Changed) []streamvault.Message {
	messages := make([]streamvault.Message, 0, len(changes))
	for _, change := range changes {
		meta := metadata.Metadata{
			metadata.AggregateType:    "bank_account",
			metadata.AggregateID:      string(account.AggregateID()),
			metadata.AggregateVersion: int64(change.Version()),
		}
		messages = append(messages, streamvault.NewEventEnvelope(
			streamvault.GenerateUUID(),
			messageName(change.Payload()),
			change.Payload(),
			meta,
			time.Now(),
		))
	}
	return messages
}

func messageName(payload interface{}) string {
	switch payload.(type) {
	case AccountOpened:
		return "account_opened"
	case AccountCredited:
		return "account_credited"
	case AccountDebited:
		return "account_debited"
	default:
		return "unknown"
	}
}

// OpenBankAccount opens a new bank account.
func OpenBankAccount() (*BankAccount, error) {
	accountID := aggregate.GenerateID()

	account := &BankAccount{
		accountID: accountID,
	}

	err := aggregate.RecordChange(account, AccountOpened{AccountID: accountID})

	return account, err
}

// AggregateID returns the bank account's aggregate.ID.
func (b *BankAccount) AggregateID() aggregate.ID {
	return b.accountID
}

// Apply changes the state of the BankAccount based on the aggregate.Changed message.
func (b *BankAccount) Apply(change *aggregate.Changed) {
	switch event := change.Payload().(type) {
	case AccountOpened:
		b.accountID = event.AccountID
	case AccountCredited:
		b.balance += event.Amount
	case AccountDebited:
		b.balance -= event.Amount
	}
}

// Deposit adds an amount of money to the bank account.
func (b *BankAccount) Deposit(amount uint) error {
	if amount == 0 {
		return nil
	}

	return aggregate.RecordChange(b, AccountCredited{Amount: amount})
}

// Withdraw removes an amount of money from the bank account.
func (b *BankAccount) Withdraw(amount uint) error {
	if amount > b.balance {
		return ErrInsufficientMoney
	}

	return aggregate.RecordChange(b, AccountDebited{Amount: amount})
}

// Balance returns the current amount of money held in the bank account.
func (b *BankAccount) Balance() uint {
	return b.balance
}
