package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ppiankov/langlearn/internal/model"
)

var (
	listMine   bool
	listSearch string
	listJSON   bool
)

// recordsCmd groups the record operations
var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List, create and decrypt practice records",
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List practice records, newest first",
	Long: `List practice records stored on the ledger.

Scores of unverified records stay encrypted; the public value is shown
with a ~ prefix until the owner decrypts the record.

Example:
  langlearn records list
  langlearn records list --mine
  langlearn records list --search hello --json`,
	Args: cobra.NoArgs,
	RunE: runRecordsList,
}

var recordsCreateCmd = &cobra.Command{
	Use:   "create <label> <score>",
	Short: "Encrypt a pronunciation score and record it on the ledger",
	Long: `Create encrypts score (clamped to 0-100) for the connected identity
and submits it together with the practiced word or phrase.

Example:
  langlearn records create "bonjour" 87`,
	Args: cobra.ExactArgs(2),
	RunE: runRecordsCreate,
}

var recordsDecryptCmd = &cobra.Command{
	Use:   "decrypt <id>",
	Short: "Decrypt a score and publish the verified cleartext",
	Long: `Decrypt asks the decryption oracle for the cleartext of a record's
score and publishes it on-chain with the oracle's proof. Records that are
already verified are answered from the ledger without the oracle.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecordsDecrypt,
}

func init() {
	rootCmd.AddCommand(recordsCmd)
	recordsCmd.AddCommand(recordsListCmd)
	recordsCmd.AddCommand(recordsCreateCmd)
	recordsCmd.AddCommand(recordsDecryptCmd)

	recordsListCmd.Flags().BoolVar(&listMine, "mine", false, "only records owned by the connected identity")
	recordsListCmd.Flags().StringVar(&listSearch, "search", "", "filter by label or owner")
	recordsListCmd.Flags().BoolVar(&listJSON, "json", false, "output JSON")
}

func runRecordsList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	a, err := openApp(ctx, cmd, listMine)
	if err != nil {
		return err
	}
	defer a.Close()

	recs := a.session.Records()
	if listSearch != "" {
		recs = a.session.Search(listSearch)
	}
	if listMine {
		recs = ownedBy(recs, a.session.Identity())
	}
	if listJSON {
		return renderJSON(a.stdout, recs)
	}
	if err := renderRecords(a.stdout, recs, a.session.Score); err != nil {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), listSummary(len(recs), a.session.RefreshedAt()))
	return nil
}

func ownedBy(recs []model.Record, identity string) []model.Record {
	out := make([]model.Record, 0, len(recs))
	for _, r := range recs {
		if r.OwnedBy(identity) {
			out = append(out, r)
		}
	}
	return out
}

func runRecordsCreate(cmd *cobra.Command, args []string) error {
	score, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("score must be an integer: %q", args[1])
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	a, err := openApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.session.CreateRecord(ctx, args[0], score)
	if err != nil {
		return fmt.Errorf("create failed: %w", err)
	}
	if score != int(res.Score) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Score %d clamped to %d\n", score, res.Score)
	}
	fmt.Fprintf(a.stdout, "Recorded practice %d (%q) in tx %s\n", res.ID, res.Label, res.Receipt.TxHash)
	return nil
}

func runRecordsDecrypt(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid record id %q", args[0])
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	a, err := openApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.session.DecryptRecord(ctx, id)
	if err != nil {
		return fmt.Errorf("decrypt failed: %w", err)
	}
	switch {
	case res.Provisional:
		fmt.Fprintf(a.stdout, "Score for %d: %d (published, not yet confirmed by the ledger)\n", res.ID, res.Value)
	default:
		fmt.Fprintf(a.stdout, "Score for %d: %d (verified)\n", res.ID, res.Value)
	}
	return nil
}
