package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/quote-assistant/agent/agents/assistant"
	quotex "github.com/tanpawarit/quote-assistant/agent/quote"
	statex "github.com/tanpawarit/quote-assistant/agent/state"
	qstashx "github.com/tanpawarit/quote-assistant/pkg/qstash"
)

const consoleHelp = `Typ een bericht voor de assistent, of:
  /totals           totalen van de offerte
  /payload          offerte als JSON
  /lead {json}      nieuwe offerte vanuit een aanvraag
  /save             offerte opslaan in de database
  /load <id>        opgeslagen offerte openen
  /list             opgeslagen offertes
  /send             offerte doorsturen naar de documentservice
  /sessions         recente sessies
  /session <id>     naar een andere sessie wisselen
  /reset            offerte leegmaken
  /quit             stoppen`

type console struct {
	assistant   *assistant.Assistant
	repo        statex.QuoteRepository
	recent      statex.RecentLister
	qstash      *qstashx.Client
	destination string
	sessionID   string

	in  io.Reader
	out io.Writer
}

func (c *console) run(ctx context.Context) error {
	if c.sessionID == "" {
		c.sessionID = uuid.NewString()
	}
	fmt.Fprintf(c.out, "Sessie %s\n%s\n", c.sessionID, consoleHelp)

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			quit, err := c.command(ctx, line)
			if err != nil {
				fmt.Fprintf(c.out, "Fout: %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}
		c.turn(ctx, line)
	}
}

// turn runs one operator message; Ctrl-C cancels the turn, not the console.
func (c *console) turn(ctx context.Context, text string) {
	turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	reply, err := c.assistant.HandleMessage(turnCtx, c.sessionID, text)
	if err != nil {
		log.Error().Err(err).Str("session_id", c.sessionID).Msg("turn failed")
		fmt.Fprintf(c.out, "Fout: %v\n", err)
		return
	}
	fmt.Fprintln(c.out, reply.Message)
	fmt.Fprintln(c.out, formatTotals(reply.Totals))
}

func (c *console) command(ctx context.Context, line string) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true, nil

	case "/help":
		fmt.Fprintln(c.out, consoleHelp)

	case "/totals":
		sess, err := c.assistant.Session(ctx, c.sessionID)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(c.out, formatLines(sess.Quote.Lines))
		fmt.Fprintln(c.out, formatTotals(sess.Totals()))

	case "/payload":
		sess, err := c.assistant.Session(ctx, c.sessionID)
		if err != nil {
			return false, err
		}
		raw, err := json.MarshalIndent(sess.Quote.ToPayload(sess.TaxRate), "", "  ")
		if err != nil {
			return false, err
		}
		fmt.Fprintln(c.out, string(raw))

	case "/lead":
		var lead statex.Lead
		if err := json.Unmarshal([]byte(arg), &lead); err != nil {
			return false, fmt.Errorf("lead must be JSON: %w", err)
		}
		if _, err := c.assistant.StartFromLead(ctx, c.sessionID, lead); err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "Offerte gestart voor %s\n", lead.Name)

	case "/save":
		if c.repo == nil {
			return false, errors.New("database not configured")
		}
		sess, err := c.assistant.Session(ctx, c.sessionID)
		if err != nil {
			return false, err
		}
		if err := c.repo.SaveQuote(ctx, c.sessionID, sess.Quote.ToPayload(sess.TaxRate)); err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "Opgeslagen als %s\n", c.sessionID)

	case "/load":
		if c.repo == nil {
			return false, errors.New("database not configured")
		}
		if arg == "" {
			return false, errors.New("usage: /load <id>")
		}
		p, err := c.repo.LoadQuote(ctx, arg)
		if err != nil {
			return false, err
		}
		sess, err := c.assistant.Seed(ctx, c.sessionID, statex.FromPayload(p, nil))
		if err != nil {
			return false, err
		}
		fmt.Fprintln(c.out, formatLines(sess.Quote.Lines))
		fmt.Fprintln(c.out, formatTotals(sess.Totals()))

	case "/list":
		if c.repo == nil {
			return false, errors.New("database not configured")
		}
		limit := 0
		if arg != "" {
			n, err := strconv.Atoi(arg)
			if err != nil {
				return false, fmt.Errorf("usage: /list [limit]")
			}
			limit = n
		}
		quotes, err := c.repo.ListQuotes(ctx, limit)
		if err != nil {
			return false, err
		}
		for _, q := range quotes {
			fmt.Fprintf(c.out, "%s  %-24s € %10.2f  %s\n", q.ID, q.CustomerName, q.Total, q.UpdatedAt.Format("2006-01-02 15:04"))
		}

	case "/send":
		if c.qstash == nil || c.destination == "" {
			return false, errors.New("qstash or QUOTE_SEND_DESTINATION not configured")
		}
		sess, err := c.assistant.Session(ctx, c.sessionID)
		if err != nil {
			return false, err
		}
		p := sess.Quote.ToPayload(sess.TaxRate)
		if err := p.CheckConsistency(); err != nil {
			return false, err
		}
		body, err := json.Marshal(p)
		if err != nil {
			return false, err
		}
		dedup := fmt.Sprintf("%s-%d", c.sessionID, sess.UpdatedAt.UnixNano())
		id, err := c.qstash.Publish(ctx, c.destination, body, qstashx.WithDeduplicationID(dedup))
		if err != nil {
			return false, err
		}
		log.Info().Str("session_id", c.sessionID).Str("message_id", id).Msg("quote sent")
		fmt.Fprintf(c.out, "Verstuurd (%s)\n", id)

	case "/sessions":
		if c.recent == nil {
			return false, errors.New("session store cannot list sessions")
		}
		ids, err := c.recent.Recent(ctx, 10)
		if err != nil {
			return false, err
		}
		for _, id := range ids {
			marker := " "
			if id == c.sessionID {
				marker = "*"
			}
			fmt.Fprintf(c.out, "%s %s\n", marker, id)
		}

	case "/session":
		if arg == "" {
			return false, errors.New("usage: /session <id>")
		}
		c.sessionID = arg
		fmt.Fprintf(c.out, "Sessie %s\n", c.sessionID)

	case "/reset":
		if err := c.assistant.Reset(ctx, c.sessionID); err != nil {
			return false, err
		}
		fmt.Fprintln(c.out, "Offerte leeggemaakt")

	default:
		return false, fmt.Errorf("unknown command %s; /help lists the commands", name)
	}
	return false, nil
}

func formatLines(lines []quotex.LineItem) string {
	if len(lines) == 0 {
		return "(geen regels)"
	}
	var b strings.Builder
	for i, l := range lines {
		fmt.Fprintf(&b, "%2d. %-40s %8g %-4s x € %8.2f = € %9.2f", i+1, l.Description, l.Quantity, l.Unit, l.UnitPrice, l.LineTotal)
		switch {
		case l.MinimumApplied:
			b.WriteString("  (minimum)")
		case l.TierLabel != "":
			b.WriteString("  (" + l.TierLabel + ")")
		}
		if i < len(lines)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func formatTotals(t quotex.Totals) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Subtotaal   € %10.2f\n", t.SubtotalInclTax)
	if t.DiscountAmount != 0 {
		fmt.Fprintf(&b, "Korting     € %10.2f\n", -t.DiscountAmount)
	}
	fmt.Fprintf(&b, "Excl. btw   € %10.2f\n", t.ExclTax)
	fmt.Fprintf(&b, "Btw         € %10.2f\n", t.TaxAmount)
	fmt.Fprintf(&b, "Totaal      € %10.2f", t.Total)
	return b.String()
}
