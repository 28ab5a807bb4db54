package commands

import (
	"os"
	"time"

	"workshop-monitor/internal/history"
	"workshop-monitor/internal/statestore"
	"workshop-monitor/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var historyStore string

func init() {
	historyCmd.Flags().StringVar(&historyStore, "store", "", "Only show the workshops of this store.")
	rootCmd.AddCommand(historyCmd)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format(time.DateTime)
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func historyTable(state *history.WorkshopState, only string) table.Writer {
	t := newTable()
	t.AppendHeader(table.Row{"Store", "Workshop", "First seen"})
	for _, store := range state.StoreNames() {
		if only != "" && store != only {
			continue
		}
		bucket := state.Stores[store]
		for _, title := range bucket.Titles() {
			firstSeen := bucket.Workshops[title].FirstSeen
			t.AppendRow(table.Row{store, title, formatTime(&firstSeen)})
		}
		t.AppendRow(table.Row{store, "(last checked)", formatTime(bucket.LastChecked)})
		t.AppendSeparator()
	}
	t.SetCaption("last updated: %s", formatTime(state.LastUpdated))
	return t
}

var historyCmd = &cobra.Command{
	Use:   "history [--store <name>]",
	Short: "Prints every workshop recorded so far.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath, os.LookupEnv)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		store, closeStore, err := statestore.Open(cmd.Context(), cfg.State)
		if err != nil {
			serviceutil.Fatal("failed to open state store", err)
		}
		defer closeStore()

		state, err := store.LoadOrCreate(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to load history", err)
		}
		historyTable(state, historyStore).Render()
	},
}
