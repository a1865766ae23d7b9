package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mr1hm/floodsense/internal/geo"
	"github.com/mr1hm/floodsense/internal/overlay"
	"github.com/mr1hm/floodsense/internal/routing"
)

// parsePoint reads "lat,lng".
func parsePoint(s string) (geo.Point, error) {
	lat, lng, ok := strings.Cut(s, ",")
	if !ok {
		return geo.Point{}, fmt.Errorf("point %q must be lat,lng", s)
	}
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("invalid latitude in %q", s)
	}
	ln, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("invalid longitude in %q", s)
	}
	p := geo.Point{Lat: la, Lng: ln}
	if !p.Valid() {
		return geo.Point{}, fmt.Errorf("point %q is out of range", s)
	}
	return p, nil
}

var distanceCmd = &cobra.Command{
	Use:   "distance <lat,lng> <lat,lng>",
	Short: "Great-circle distance between two points",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := parsePoint(args[0])
		if err != nil {
			return err
		}
		b, err := parsePoint(args[1])
		if err != nil {
			return err
		}
		meters := geo.Between(a, b)
		fmt.Fprintf(cmd.OutOrStdout(), "%.0f m (%s)\n", meters, routing.FormatDistance(meters))
		return nil
	},
}

var overlaysPath string

var exitPointCmd = &cobra.Command{
	Use:   "exit-point <zone> <lat,lng>",
	Short: "Nearest point just outside a flood zone",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := overlay.Load(overlaysPath)
		if err != nil {
			return err
		}
		zone, ok := set.Zone(args[0])
		if !ok {
			return fmt.Errorf("%s: %w", args[0], overlay.ErrUnknownArea)
		}
		user, err := parsePoint(args[1])
		if err != nil {
			return err
		}

		exit := geo.SafeExitPoint(zone.Coordinates, user, nil)
		fmt.Fprintf(cmd.OutOrStdout(), "%.6f,%.6f (%s away)\n", exit.Lat, exit.Lng, routing.FormatDistance(geo.Between(user, exit)))
		return nil
	},
}

var routeCmd = &cobra.Command{
	Use:   "route <from lat,lng> <to lat,lng>",
	Short: "Find a route that avoids flood zones and blocked roads",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := parsePoint(args[0])
		if err != nil {
			return err
		}
		to, err := parsePoint(args[1])
		if err != nil {
			return err
		}

		set, err := overlay.Load(overlaysPath)
		if err != nil {
			return err
		}
		osrmURL, _ := cmd.Flags().GetString("osrm")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		nav := routing.NewNavigator(routing.NewOSRM(osrmURL, timeout), set)

		route, err := nav.CalculateRoute(cmd.Context(), &from, to)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		label := "safe route"
		if route.Fallback {
			label = "no safe route found, straight line"
		}
		fmt.Fprintf(out, "%s: %s, %s\n", label, routing.FormatDistance(route.Distance), routing.FormatDuration(route.Duration))
		for i, s := range route.Steps {
			fmt.Fprintf(out, "%3d. %s (%s)\n", i+1, s.Instruction, routing.FormatDistance(s.Distance))
		}
		return nil
	},
}

func init() {
	exitPointCmd.Flags().StringVar(&overlaysPath, "overlays", "", "overlay YAML file (defaults to the built-in set)")
	routeCmd.Flags().StringVar(&overlaysPath, "overlays", "", "overlay YAML file (defaults to the built-in set)")
	routeCmd.Flags().String("osrm", "https://router.project-osrm.org", "OSRM base URL")
	routeCmd.Flags().Duration("timeout", 10*time.Second, "routing request timeout")
}
