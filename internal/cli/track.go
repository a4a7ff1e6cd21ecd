package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/mute-zones-service/internal/adapter/zonestore"
	"github.com/couchcryptid/mute-zones-service/internal/domain"
)

// trackSpan is how far either side of a zone centre a generated track runs,
// in multiples of the zone radius.
const trackSpan = 3

type trackFix struct {
	Device    string  `json:"device"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Timestamp string  `json:"timestamp"`
}

type trackOptions struct {
	device   string
	step     float64
	interval time.Duration
	start    time.Time
}

func newTrackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Generate fixes that walk through every zone",
		Long: "Writes newline-delimited JSON fixes that cross each zone west to east\n" +
			"through its centre, starting and ending outside it. Pipe the output into\n" +
			"the fix topic to exercise the service end to end.",
		Args: cobra.NoArgs,
		RunE: runTrack,
	}
	zoneFileFlag(cmd)
	cmd.Flags().String("device", "zonectl", "Device name on generated fixes")
	cmd.Flags().Float64("step", 10, "Meters between consecutive fixes")
	cmd.Flags().Duration("interval", 5*time.Second, "Time between consecutive fixes")
	cmd.Flags().String("start", "", "Timestamp of the first fix (RFC3339, default now)")
	cmd.Flags().StringP("out", "o", "", "Output file (default stdout)")
	return cmd
}

func runTrack(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("zones")
	zones, err := zonestore.LoadFile(path, defaultRadius(cmd))
	if err != nil {
		return err
	}

	opts := trackOptions{start: clockwork.NewRealClock().Now().UTC()}
	opts.device, _ = cmd.Flags().GetString("device")
	opts.step, _ = cmd.Flags().GetFloat64("step")
	opts.interval, _ = cmd.Flags().GetDuration("interval")
	if !(opts.step > 0) {
		return fmt.Errorf("--step must be positive")
	}
	if s, _ := cmd.Flags().GetString("start"); s != "" {
		if opts.start, err = time.Parse(time.RFC3339, s); err != nil {
			return fmt.Errorf("parse --start: %w", err)
		}
	}

	var w io.Writer = cmd.OutOrStdout()
	if out, _ := cmd.Flags().GetString("out"); out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	n, err := writeTrack(w, zones, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d fixes across %d zones\n", n, len(zones))
	return nil
}

func writeTrack(w io.Writer, zones []domain.Zone, opts trackOptions) (int, error) {
	enc := json.NewEncoder(w)
	at := opts.start
	count := 0
	for _, z := range zones {
		for _, p := range crossing(z, opts.step) {
			fix := trackFix{
				Device:    opts.device,
				Lat:       p.Lat,
				Lon:       p.Lon,
				Timestamp: at.Format(time.RFC3339),
			}
			if err := enc.Encode(fix); err != nil {
				return count, fmt.Errorf("write fix: %w", err)
			}
			at = at.Add(opts.interval)
			count++
		}
	}
	return count, nil
}

// crossing returns points along the east-west great circle through the zone
// centre, from trackSpan radii west to trackSpan radii east.
func crossing(z domain.Zone, step float64) []domain.Position {
	if !(z.RadiusMeters > 0) {
		return nil
	}
	half := trackSpan * z.RadiusMeters
	n := int(math.Ceil(2 * half / step))
	points := make([]domain.Position, 0, n+1)
	for i := 0; i <= n; i++ {
		offset := math.Min(-half+float64(i)*step, half)
		bearing := 90.0
		if offset < 0 {
			bearing = 270
		}
		points = append(points, domain.Destination(z.Center(), bearing, math.Abs(offset)))
	}
	return points
}
