package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/mute-zones-service/internal/adapter/zonestore"
	"github.com/couchcryptid/mute-zones-service/internal/domain"
)

func newZonesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zones",
		Short: "Manage the shared zone set in Redis",
	}
	cmd.PersistentFlags().String("redis-addr", sharedcfg.EnvOrDefault("REDIS_ADDR", "localhost:6379"), "Redis address")
	cmd.PersistentFlags().String("key", sharedcfg.EnvOrDefault("REDIS_ZONE_KEY", "mutezones:zones"), "Redis hash key holding the zones")

	put := &cobra.Command{
		Use:   "put <name> <lat> <lon>",
		Short: "Create or replace a zone",
		Args:  cobra.ExactArgs(3),
		RunE: withStore(func(ctx context.Context, cmd *cobra.Command, s *zonestore.RedisStore, args []string) error {
			pos, err := parsePosition(args[1], args[2])
			if err != nil {
				return err
			}
			radius, _ := cmd.Flags().GetFloat64("radius")
			if !cmd.Flags().Changed("radius") {
				radius = defaultRadius(cmd)
			}
			z := domain.Zone{Name: args[0], Lat: pos.Lat, Lon: pos.Lon, RadiusMeters: radius}
			if err := s.Put(ctx, z); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "put %s (%.1f m)\n", z.Name, z.RadiusMeters)
			return nil
		}),
	}
	put.Flags().Float64("radius", 0, "Zone radius in meters (default --default-radius)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List zones in match order",
			Args:  cobra.NoArgs,
			RunE: withStore(func(ctx context.Context, cmd *cobra.Command, s *zonestore.RedisStore, _ []string) error {
				zones, err := s.Zones(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tLAT\tLON\tRADIUS_M")
				for _, z := range zones {
					fmt.Fprintf(tw, "%s\t%.6f\t%.6f\t%.1f\n", z.Name, z.Lat, z.Lon, z.RadiusMeters)
				}
				return tw.Flush()
			}),
		},
		put,
		&cobra.Command{
			Use:   "delete <name>",
			Short: "Delete a zone",
			Args:  cobra.ExactArgs(1),
			RunE: withStore(func(ctx context.Context, cmd *cobra.Command, s *zonestore.RedisStore, args []string) error {
				if err := s.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			}),
		},
	)
	return cmd
}

type storeFunc func(ctx context.Context, cmd *cobra.Command, s *zonestore.RedisStore, args []string) error

func withStore(fn storeFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("redis-addr")
		key, _ := cmd.Flags().GetString("key")
		s := zonestore.NewRedisStore(redis.NewClient(&redis.Options{Addr: addr}), key, defaultRadius(cmd))
		defer s.Close()
		return fn(cmd.Context(), cmd, s, args)
	}
}
