package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/mute-zones-service/internal/adapter/zonestore"
	"github.com/couchcryptid/mute-zones-service/internal/domain"
)

func newDistanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "distance <lat1> <lon1> <lat2> <lon2>",
		Short: "Great-circle distance between two points, in meters",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := parsePosition(args[0], args[1])
			if err != nil {
				return err
			}
			b, err := parsePosition(args[2], args[3])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%.2f\n", domain.Distance(a, b))
			return nil
		},
	}
}

type matchResult struct {
	Position domain.Position `json:"position"`
	Matched  bool            `json:"matched"`
	Zone     *domain.Zone    `json:"zone,omitempty"`
	Distance *float64        `json:"distance_meters,omitempty"`
}

func newMatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match <lat> <lon>",
		Short: "Show which zone, if any, contains a position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := parsePosition(args[0], args[1])
			if err != nil {
				return err
			}
			path, _ := cmd.Flags().GetString("zones")
			zones, err := zonestore.LoadFile(path, defaultRadius(cmd))
			if err != nil {
				return err
			}

			zone, ok, err := domain.Match(pos, zones)
			if err != nil {
				return err
			}
			res := matchResult{Position: pos, Matched: ok}
			if ok {
				d := domain.Distance(pos, zone.Center())
				res.Zone, res.Distance = &zone, &d
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	zoneFileFlag(cmd)
	return cmd
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a zone file and report overlapping zones",
		Long: "Loads the zone file with the same rules the service uses. Overlapping\n" +
			"zones are reported because the first one listed wins inside the overlap.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("zones")
			zones, err := zonestore.LoadFile(path, defaultRadius(cmd))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, z := range zones {
				if !(z.RadiusMeters > 0) {
					fmt.Fprintf(out, "WARN  %s: radius %.1f m never matches\n", z.Name, z.RadiusMeters)
				}
			}
			for _, o := range overlaps(zones) {
				fmt.Fprintf(out, "WARN  %s overlaps %s (%s wins)\n", o[0], o[1], o[0])
			}
			fmt.Fprintf(out, "OK    %d zones in %s\n", len(zones), path)
			return nil
		},
	}
	zoneFileFlag(cmd)
	return cmd
}

// overlaps returns pairs of zone names whose discs intersect, earlier zone first.
func overlaps(zones []domain.Zone) [][2]string {
	var pairs [][2]string
	for i, a := range zones {
		if !(a.RadiusMeters > 0) {
			continue
		}
		for _, b := range zones[i+1:] {
			if !(b.RadiusMeters > 0) {
				continue
			}
			if domain.Distance(a.Center(), b.Center()) <= a.RadiusMeters+b.RadiusMeters {
				pairs = append(pairs, [2]string{a.Name, b.Name})
			}
		}
	}
	return pairs
}

func parsePosition(lat, lon string) (domain.Position, error) {
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return domain.Position{}, fmt.Errorf("%w: latitude %q", domain.ErrInvalidInput, lat)
	}
	lo, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return domain.Position{}, fmt.Errorf("%w: longitude %q", domain.ErrInvalidInput, lon)
	}
	p := domain.Position{Lat: la, Lon: lo}
	if err := p.Validate(); err != nil {
		return domain.Position{}, err
	}
	return p, nil
}
