package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/soyeahso/agentdesk/internal/agent"
	"github.com/soyeahso/agentdesk/internal/logging"
	"github.com/soyeahso/agentdesk/internal/memory"
	"github.com/soyeahso/agentdesk/internal/structured"
)

// ErrSingleLetter is returned by letter_counter for a multi-character letter.
var ErrSingleLetter = errors.New("The 'letter' parameter must be a single character")

// CurrentDatetime formats now as local "2006-01-02 15:04:05".
func CurrentDatetime(now time.Time) string { return now.Local().Format(time.DateTime) }

// CurrentDatetimeUTC formats now in UTC with a " UTC" suffix.
func CurrentDatetimeUTC(now time.Time) string { return now.UTC().Format(time.DateTime) + " UTC" }

// CurrentDatetimeISO formats now in UTC as RFC 3339.
func CurrentDatetimeISO(now time.Time) string { return now.UTC().Format(time.RFC3339) }

// CountLetter counts letter in word, ignoring case.
func CountLetter(word, letter string) (int, error) {
	if utf8.RuneCountInString(letter) != 1 {
		return 0, ErrSingleLetter
	}
	return strings.Count(strings.ToLower(word), strings.ToLower(letter)), nil
}

// ClockTools returns the three datetime tools reading now.
func ClockTools(now func() time.Time) []agent.Tool {
	if now == nil {
		now = time.Now
	}
	noArgs := `{"type":"object","properties":{}}`
	return []agent.Tool{
		agent.NewFuncTool("get_current_datetime",
			"Get the current local date and time (YYYY-MM-DD HH:MM:SS).", noArgs,
			func(context.Context, string) (string, error) { return CurrentDatetime(now()), nil }),
		agent.NewFuncTool("get_current_datetime_utc",
			"Get the current UTC date and time.", noArgs,
			func(context.Context, string) (string, error) { return CurrentDatetimeUTC(now()), nil }),
		agent.NewFuncTool("get_current_datetime_iso",
			"Get the current date and time in ISO format with timezone.", noArgs,
			func(context.Context, string) (string, error) { return CurrentDatetimeISO(now()), nil }),
	}
}

// TextTools returns letter_counter, split_into_words, calculate and
// create_burger_order.
func TextTools(log *logging.Logger) []agent.Tool {
	log = log.Sub("tools")
	return []agent.Tool{
		agent.NewFuncTool("letter_counter",
			"Count occurrences of a specific letter in a word.",
			`{"type":"object","properties":{"word":{"type":"string","description":"The input word to search in"},"letter":{"type":"string","description":"The specific letter to count"}},"required":["word","letter"]}`,
			func(_ context.Context, input string) (string, error) {
				var args struct{ Word, Letter string }
				if err := decode(input, &args); err != nil {
					return "", err
				}
				n, err := CountLetter(args.Word, args.Letter)
				if err != nil {
					return "", err
				}
				return strconv.Itoa(n), nil
			}),
		agent.NewFuncTool("split_into_words",
			"Split text into words and standalone symbols. Returns a JSON array.",
			`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`,
			func(_ context.Context, input string) (string, error) {
				var args struct{ Text string }
				if err := decode(input, &args); err != nil {
					return "", err
				}
				out, err := json.Marshal(structured.SplitIntoWords(args.Text))
				return string(out), err
			}),
		agent.NewFuncTool("calculate",
			"Evaluate an arithmetic expression. Supports + - * / % ** ^, parentheses, cube(x), sqrt(x) and abs(x).",
			`{"type":"object","properties":{"expression":{"type":"string"}},"required":["expression"]}`,
			func(_ context.Context, input string) (string, error) {
				var args struct{ Expression string }
				if err := decode(input, &args); err != nil {
					return "", err
				}
				v, err := structured.Evaluate(args.Expression)
				if err != nil {
					return "", err
				}
				return structured.FormatNumber(v), nil
			}),
		agent.NewFuncTool("create_burger_order",
			"Create a burger order for the user.",
			`{"type":"object","properties":{"user_id":{"type":"string","description":"The ID of the user placing the order"},"order_details":{"type":"string","description":"The details of the burger order"}},"required":["user_id"]}`,
			func(_ context.Context, input string) (string, error) {
				var args struct {
					UserID       string `json:"user_id"`
					OrderDetails string `json:"order_details"`
				}
				if err := decode(input, &args); err != nil {
					return "", err
				}
				if args.UserID == "" {
					return "", errRequired("user_id")
				}
				log.Info().Str("user", args.UserID).Str("details", args.OrderDetails).Msg("creating burger order")
				return fmt.Sprintf("Order for user %s created successfully.", args.UserID), nil
			}),
	}
}

// MemoryTools returns load_memory and save_memory bound to one engine.
func MemoryTools(bank memory.Bank, engineID string, topK int, log *logging.Logger) []agent.Tool {
	log = log.Sub("tools.memory")
	return []agent.Tool{
		agent.NewFuncTool("load_memory",
			"Load the user's remembered facts. An optional query narrows them to the most relevant.",
			`{"type":"object","properties":{"user_id":{"type":"string"},"query":{"type":"string"}},"required":["user_id"]}`,
			func(ctx context.Context, input string) (string, error) {
				var args struct {
					UserID string `json:"user_id"`
					Query  string `json:"query"`
				}
				if err := decode(input, &args); err != nil {
					return "", err
				}
				if args.UserID == "" {
					return "", errRequired("user_id")
				}
				facts, err := memory.Recall(ctx, bank, engineID, args.UserID, args.Query, topK)
				if err != nil {
					log.Error().Err(err).Str("user", args.UserID).Msg("error retrieving memories")
					return "null", nil
				}
				if facts == "" {
					return "null", nil
				}
				return facts, nil
			}),
		agent.NewFuncTool("save_memory",
			"Save a fact to the user's memory.",
			`{"type":"object","properties":{"user_id":{"type":"string"},"fact":{"type":"string"}},"required":["user_id","fact"]}`,
			func(ctx context.Context, input string) (string, error) {
				var args struct {
					UserID string `json:"user_id"`
					Fact   string `json:"fact"`
				}
				if err := decode(input, &args); err != nil {
					return "", err
				}
				if args.UserID == "" || args.Fact == "" {
					return "", errRequired("user_id", "fact")
				}
				m, err := bank.Create(ctx, engineID, args.UserID, args.Fact)
				if err != nil {
					log.Error().Err(err).Str("user", args.UserID).Msg("error creating memory")
					return "null", nil
				}
				return m.Name, nil
			}),
	}
}
