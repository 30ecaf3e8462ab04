package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/context-search/internal/core/domain"
)

var (
	askTopK   int
	askStream bool
	askJSON   bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the indexed content",
	Long: `Retrieves the passages most relevant to the question and asks the
configured language model to answer from them. The answer is followed by
the sources it was grounded on.

When standard output is a terminal the answer is streamed as it is
generated. Use --stream=false to wait for the complete answer.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of passages to retrieve (default from config)")
	askCmd.Flags().BoolVar(&askStream, "stream", false, "stream the answer as it is generated")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	svc, err := loadServices(cmd.Context())
	if err != nil {
		return err
	}
	defer svc.close()

	out := cmd.OutOrStdout()
	stream := askStream
	if !cmd.Flags().Changed("stream") {
		stream = isTerminal(out)
	}

	if stream && !askJSON {
		return streamAnswer(cmd.Context(), out, svc, question)
	}

	answer, err := svc.Query.Ask(cmd.Context(), question, askTopK)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		data, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintln(out, answer.Text)
	printSources(out, answer.Sources)
	return nil
}

func streamAnswer(ctx context.Context, out io.Writer, svc *Services, question string) error {
	fragments, sources, err := svc.Query.AskStream(ctx, question, askTopK)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	for f := range fragments {
		if f.Err != nil {
			fmt.Fprintln(out)
			return fmt.Errorf("ask failed: %w", f.Err)
		}
		fmt.Fprint(out, f.Text)
	}
	fmt.Fprintln(out)

	printSources(out, sources)
	return nil
}

func printSources(out io.Writer, sources []domain.Source) {
	if len(sources) == 0 {
		return
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Sources:")
	for i, src := range sources {
		title := "(untitled)"
		if src.Title != nil {
			title = *src.Title
		}
		fmt.Fprintf(out, "  [%d] %s (%.2f)\n", i+1, title, src.Score)
		if src.URL != nil {
			fmt.Fprintf(out, "      %s\n", *src.URL)
		}
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
