package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/velibadvisor/velibadvisor/internal/app"
	"github.com/velibadvisor/velibadvisor/internal/journey"
	"github.com/velibadvisor/velibadvisor/pkg/geo"
)

func newAnalyzeCmd(c *cli) *cobra.Command {
	var (
		from, to, here string
		asJSON         bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Decide whether a Vélib is worth it between two addresses",
		Example: `  velibctl analyze --from "Châtelet" --to "Gare du Nord"
  velibctl analyze --from "Ma position" --here 48.8566,2.3522 --to "Bastille"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := journey.Request{From: from, To: to}
			if here != "" {
				point, err := parsePoint(here)
				if err != nil {
					return fmt.Errorf("--here: %w", err)
				}
				req.Here = &point
			}

			services := app.New(c.cfg, c.logger)
			planner := journey.NewPlanner(journey.PlannerConfig{
				Geocoder:       services.Geocoder,
				Analyzer:       services.Engine,
				GeocodeTimeout: c.cfg.Decision.CallTimeout,
				Logger:         c.logger,
			})

			plan, err := planner.Plan(cmd.Context(), req)
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), plan)
			}
			return printPlan(cmd, plan)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "departure address")
	cmd.Flags().StringVar(&to, "to", "", "destination address")
	cmd.Flags().StringVar(&here, "here", "", "current position as lat,lng")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full decision as JSON")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func printPlan(cmd *cobra.Command, plan *journey.Plan) error {
	d := plan.Decision
	verdict := "take the Vélib"
	if !d.Recommend {
		verdict = "skip the Vélib"
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s -> %s (%s)\n", plan.From, plan.To, geo.FormatDistance(d.DirectDistanceMeters))
	fmt.Fprintf(w, "%s: %s\n", verdict, d.Reason)
	if d.VelibSeconds != nil {
		fmt.Fprintf(w, "vélib:       %s\n", geo.FormatDuration(float64(*d.VelibSeconds)))
	}
	if d.Alternative != nil {
		fmt.Fprintf(w, "alternative: %s (%s)\n", geo.FormatDuration(float64(d.Alternative.DurationSeconds)), d.Alternative.Mode)
	}
	if len(d.DepartureStations) > 0 {
		fmt.Fprintf(w, "pick up at:  %s\n", d.DepartureStations[0].Name)
	}
	if len(d.ArrivalStations) > 0 {
		fmt.Fprintf(w, "drop off at: %s\n", d.ArrivalStations[0].Name)
	}
	if len(d.Degraded) > 0 {
		fmt.Fprintf(w, "degraded:    %s\n", strings.Join(d.Degraded, ", "))
	}
	return nil
}

// parsePoint reads "lat,lng".
func parsePoint(s string) (geo.Coordinate, error) {
	lat, lng, ok := strings.Cut(s, ",")
	if !ok {
		return geo.Coordinate{}, fmt.Errorf("%q is not lat,lng", s)
	}
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("latitude: %w", err)
	}
	ln, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("longitude: %w", err)
	}
	point := geo.Coordinate{Lat: la, Lng: ln}
	return point, point.Validate()
}
