package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"anonrelay/config"
	"anonrelay/db"
	"anonrelay/logger"
	"anonrelay/models"
	"anonrelay/store"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Decode the persisted state and print a summary",
	Args:  cobra.NoArgs,
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().String("key", "", "encryption passphrase (default $DATA_KEY)")
	inspectCmd.Flags().Bool("prompt-key", false, "ask for the passphrase on the terminal")
	inspectCmd.Flags().Bool("yaml", false, "print a machine-readable report")
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadStorage()
	if err != nil {
		return err
	}
	if key, _ := cmd.Flags().GetString("key"); key != "" {
		cfg.DataKey = key
	}
	if ask, _ := cmd.Flags().GetBool("prompt-key"); ask {
		if cfg.DataKey, err = promptKey(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	cipher, err := openCipher(cfg.DataKey)
	if err != nil {
		return err
	}
	states := store.New(backend, cipher, nil)
	defer states.Close()

	st, size, err := states.Inspect(ctx)
	if err != nil {
		return fmt.Errorf("inspect %s backend: %w", backend.Name(), err)
	}

	audit, err := logger.ReadAuditLines(cfg.AuditLog)
	if err != nil {
		return err
	}

	sum := summary{
		Backend:   backend.Name(),
		Size:      size,
		Encrypted: cipher != nil,
		State:     st,
		Resets:    len(audit),
	}
	if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
		return writeReport(os.Stdout, sum)
	}
	printSummary(os.Stdout, sum)

	if sq, ok := backend.(*db.DB); ok {
		if at, err := sq.SavedAt(ctx); err == nil {
			fmt.Printf("  Last save: %s (%s)\n", at.Format(time.RFC3339), humanize.Time(at))
		}
		if n, err := sq.SaveCount(ctx); err == nil {
			fmt.Printf("  Saves recorded: %s\n", humanize.Comma(int64(n)))
		}
	}
	return nil
}

type summary struct {
	Backend   string
	Size      int
	Encrypted bool
	State     *models.State
	Resets    int
}

func printSummary(w io.Writer, s summary) {
	st := s.State
	published := 0
	for _, u := range st.Users {
		published += u.PublishCount
	}

	fmt.Fprintf(w, "🔍 State summary (%s backend)\n", s.Backend)
	fmt.Fprintln(w, "=====================================")
	fmt.Fprintf(w, "  Size: %s\n", humanize.Bytes(uint64(s.Size)))
	fmt.Fprintf(w, "  Encrypted: %t\n", s.Encrypted)
	fmt.Fprintf(w, "  Enabled: %t\n", st.Enabled)
	fmt.Fprintf(w, "  Users: %s (accepted %s, banned %s)\n",
		humanize.Comma(int64(len(st.Users))), humanize.Comma(int64(len(st.Accepted))), humanize.Comma(int64(len(st.Banned))))
	fmt.Fprintf(w, "  Drafts: %s\n", humanize.Comma(int64(len(st.Drafts))))
	fmt.Fprintf(w, "  Chat entries: %s (next #%d)\n", humanize.Comma(int64(len(st.Chat))), st.NextSeq)
	fmt.Fprintf(w, "  Published total: %s\n", humanize.Comma(int64(published)))
	fmt.Fprintf(w, "  Complaints: %s (next #%d)\n", humanize.Comma(int64(len(st.Complaints))), st.NextComplaintSeq)
	fmt.Fprintf(w, "  Resets logged: %d\n", s.Resets)
	if n := len(st.Chat); n > 0 {
		last := st.Chat[n-1]
		fmt.Fprintf(w, "  Last entry: #%d %s\n", last.Seq, humanize.Time(last.PublishedAt))
	}
}

type report struct {
	Backend    string `yaml:"backend"`
	SizeBytes  int    `yaml:"size_bytes"`
	Encrypted  bool   `yaml:"encrypted"`
	Enabled    bool   `yaml:"enabled"`
	Users      int    `yaml:"users"`
	Accepted   int    `yaml:"accepted"`
	Banned     int    `yaml:"banned"`
	Drafts     int    `yaml:"drafts"`
	Entries    int    `yaml:"entries"`
	NextEntry  int64  `yaml:"next_entry"`
	Published  int    `yaml:"published"`
	Complaints int    `yaml:"complaints"`
	Resets     int    `yaml:"resets"`
	LastEntry  *struct {
		Seq         int64     `yaml:"seq"`
		PublishedAt time.Time `yaml:"published_at"`
	} `yaml:"last_entry,omitempty"`
}

func writeReport(w io.Writer, s summary) error {
	st := s.State
	r := report{
		Backend:    s.Backend,
		SizeBytes:  s.Size,
		Encrypted:  s.Encrypted,
		Enabled:    st.Enabled,
		Users:      len(st.Users),
		Accepted:   len(st.Accepted),
		Banned:     len(st.Banned),
		Drafts:     len(st.Drafts),
		Entries:    len(st.Chat),
		NextEntry:  st.NextSeq,
		Complaints: len(st.Complaints),
		Resets:     s.Resets,
	}
	for _, u := range st.Users {
		r.Published += u.PublishCount
	}
	if n := len(st.Chat); n > 0 {
		last := st.Chat[n-1]
		r.LastEntry = &struct {
			Seq         int64     `yaml:"seq"`
			PublishedAt time.Time `yaml:"published_at"`
		}{Seq: last.Seq, PublishedAt: last.PublishedAt}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}
