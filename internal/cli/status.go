package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/techlink-io/techlink/internal/daemon"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running relay's connection counts",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}

	host := cfg.API.Host
	if host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	url := fmt.Sprintf("http://%s:%d/api/status", host, cfg.API.Port)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("relay not reachable at %s (is it running? try 'techlink serve'): %w", url, err)
	}
	defer resp.Body.Close()

	var status struct {
		Status               string         `json:"status"`
		NodeID               string         `json:"node_id"`
		Region               string         `json:"region"`
		UptimeSeconds        int64          `json:"uptime_seconds"`
		Connections          int            `json:"connections"`
		Customers            int            `json:"customers"`
		Technicians          int            `json:"technicians"`
		TechniciansAvailable int            `json:"technicians_available"`
		Jobs24h              map[string]int `json:"jobs_24h"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}

	uptime := (time.Duration(status.UptimeSeconds) * time.Second).String()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NODE\tREGION\tUPTIME\tCONNECTIONS\tCUSTOMERS\tTECHNICIANS\tAVAILABLE")
	fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
		status.NodeID,
		status.Region,
		uptime,
		status.Connections,
		status.Customers,
		status.Technicians,
		status.TechniciansAvailable,
	)
	if err := w.Flush(); err != nil {
		return err
	}

	// Job counters are only present when the relay journals events.
	if status.Jobs24h != nil {
		fmt.Println()
		jw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(jw, "JOBS (24H)\tREQUESTED\tACCEPTED\tREJECTED\tCANCELLED\tCOMPLETED")
		fmt.Fprintf(jw, "\t%d\t%d\t%d\t%d\t%d\n",
			status.Jobs24h["requested"],
			status.Jobs24h["accepted"],
			status.Jobs24h["rejected"],
			status.Jobs24h["cancelled"],
			status.Jobs24h["completed"],
		)
		return jw.Flush()
	}
	return nil
}
