package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/ppiankov/langlearn/internal/model"
)

// statusPrinter echoes status transitions as single lines
func statusPrinter(w io.Writer) func(model.TxStatus) {
	return func(s model.TxStatus) {
		switch s.Kind {
		case model.TxPending:
			fmt.Fprintf(w, "⏳ %s\n", s.Message)
		case model.TxSuccess:
			fmt.Fprintf(w, "✓ %s\n", s.Message)
		case model.TxError:
			fmt.Fprintf(w, "✗ %s\n", s.Message)
		}
	}
}

// scoreFunc resolves the displayable score of a record
type scoreFunc func(model.Record) model.Score

func renderRecords(w io.Writer, recs []model.Record, score scoreFunc) error {
	if len(recs) == 0 {
		_, err := fmt.Fprintln(w, "No practice records found.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tOWNER\tCREATED\tSCORE\tSTATUS")
	for _, r := range recs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Label, shortAddress(r.Owner), r.CreatedAt.UTC().Format(time.RFC3339),
			formatScore(score(r), r.PublicValue1), recordState(r))
	}
	return tw.Flush()
}

// listSummary is the footer under a record listing
func listSummary(n int, refreshedAt time.Time) string {
	noun := "records"
	if n == 1 {
		noun = "record"
	}
	if refreshedAt.IsZero() {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %s, refreshed %s", n, noun, refreshedAt.UTC().Format(time.RFC3339))
}

func renderStats(w io.Writer, st model.Stats) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Total practices:\t%d\n", st.TotalCount)
	fmt.Fprintf(tw, "Average score:\t%d\n", st.AverageScore)
	fmt.Fprintf(tw, "Recent (7 days):\t%d\n", st.RecentCount)
	fmt.Fprintf(tw, "Improvement rate:\t%d%%\n", st.ImprovementRate)
	fmt.Fprintf(tw, "Best word:\t%s\n", st.BestLabel)
	return tw.Flush()
}

func renderJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// formatScore shows the cleartext when known and the public value otherwise
func formatScore(s model.Score, public uint32) string {
	switch {
	case s.Known && s.Provisional:
		return strconv.FormatUint(uint64(s.Value), 10) + " (unconfirmed)"
	case s.Known:
		return strconv.FormatUint(uint64(s.Value), 10)
	default:
		return "~" + strconv.FormatUint(uint64(public), 10)
	}
}

func recordState(r model.Record) string {
	if r.Verified {
		return "verified"
	}
	return "encrypted"
}

func shortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}
