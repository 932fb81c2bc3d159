package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/velibadvisor/velibadvisor/internal/app"
	"github.com/velibadvisor/velibadvisor/pkg/geo"
)

func newStationsCmd(c *cli) *cobra.Command {
	var (
		lat, lng, radius float64
		refresh, asJSON  bool
	)

	cmd := &cobra.Command{
		Use:     "stations",
		Short:   "List Vélib stations around a point",
		Example: `  velibctl stations --lat 48.8584 --lng 2.3470 --radius 500`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			point := geo.Coordinate{Lat: lat, Lng: lng}
			if radius <= 0 {
				radius = c.cfg.Stations.DefaultRadius
			}

			services := app.New(c.cfg, c.logger)
			lookup := services.Stations.NearbyStations
			if refresh {
				lookup = services.Stations.Refresh
			}

			stations, err := lookup(cmd.Context(), point, radius)
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), stations)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tBIKES\tE-BIKES\tDOCKS\tDISTANCE\tWALK")
			for _, st := range stations {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
					st.ID, st.Name, st.BikesAvailable, st.EBikes, st.DocksAvailable,
					geo.FormatDistance(st.DistanceMeters), geo.FormatDuration(float64(st.WalkDurationSeconds)))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "longitude")
	cmd.Flags().Float64Var(&radius, "radius", 0, "search radius in meters (default from config)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the cache and exact radius")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print stations as JSON")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")
	return cmd
}
