package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	internalgrpc "github.com/mr1hm/floodsense/internal/grpc"
	"github.com/mr1hm/floodsense/internal/livesync"
	"github.com/mr1hm/floodsense/internal/models"
	"github.com/mr1hm/floodsense/internal/repository"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List, watch and manage alerts",
}

// dial connects to the server's gRPC API and returns a context carrying the
// session token.
func dial(ctx context.Context) (*internalgrpc.Client, context.Context, func(), error) {
	if token == "" {
		return nil, nil, nil, errors.New("a session token is required (--token or FLOODSENSE_TOKEN)")
	}
	cc, err := grpc.NewClient(serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("error connecting to %s: %w", serverAddr, err)
	}
	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
	return internalgrpc.NewClient(cc), ctx, func() { cc.Close() }, nil
}

func printAlerts(w io.Writer, alerts []models.Alert) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tTYPE\tREAD\tDISTRICT\tTITLE")
	for _, a := range alerts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\t%s\n",
			a.ID, a.Timestamp.Local().Format(time.DateTime), a.Type, a.Read, a.District, a.Title)
	}
	return tw.Flush()
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alerts, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, ctx, closeConn, err := dial(cmd.Context())
		if err != nil {
			return err
		}
		defer closeConn()

		req := &internalgrpc.ListAlertsRequest{}
		req.Type, _ = cmd.Flags().GetString("type")
		req.District, _ = cmd.Flags().GetString("district")
		limit, _ := cmd.Flags().GetInt("limit")
		req.Limit = int32(limit)
		if cmd.Flags().Changed("read") {
			read, _ := cmd.Flags().GetBool("read")
			req.Read = &read
		}

		resp, err := client.ListAlerts(ctx, req)
		if err != nil {
			return err
		}
		if err := printAlerts(cmd.OutOrStdout(), resp.Alerts); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d unread\n", resp.UnreadCount)
		return nil
	},
}

var alertsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream alert events as they happen",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, ctx, closeConn, err := dial(cmd.Context())
		if err != nil {
			return err
		}
		defer closeConn()

		typ, _ := cmd.Flags().GetString("type")
		stream, err := client.StreamAlerts(ctx, &internalgrpc.StreamAlertsRequest{Type: typ})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for {
			ev, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			switch {
			case ev.Alert != nil:
				fmt.Fprintf(out, "%s  %-14s %-9s %s\n", ev.Alert.Timestamp.Local().Format(time.TimeOnly), ev.Kind, ev.Alert.Type, ev.Alert.Title)
			case ev.Kind == livesync.EventAlertsCleared:
				fmt.Fprintf(out, "%s  %-14s %d deleted\n", time.Now().Format(time.TimeOnly), ev.Kind, ev.Count)
			}
		}
	},
}

var alertsReadCmd = &cobra.Command{
	Use:   "read <id>",
	Short: "Mark an alert as read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, ctx, closeConn, err := dial(cmd.Context())
		if err != nil {
			return err
		}
		defer closeConn()

		if _, err := client.MarkAlertRead(ctx, &internalgrpc.MarkAlertReadRequest{ID: args[0]}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "marked %s as read\n", args[0])
		return nil
	},
}

var alertsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every alert in the store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return errors.New("refusing to delete all alerts without --yes")
		}
		return withHub(cmd.Context(), func(hub *livesync.Hub, _ *repository.Repository) error {
			n, err := hub.ClearAllAlerts(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d alerts\n", n)
			return nil
		})
	},
}

var broadcastCmd = &cobra.Command{
	Use:   "broadcast <message>",
	Short: "Send an emergency broadcast to a district or every region",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		district, _ := cmd.Flags().GetString("district")
		return withHub(cmd.Context(), func(hub *livesync.Hub, _ *repository.Repository) error {
			a, err := hub.SendEmergencyBroadcast(cmd.Context(), args[0], district)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "broadcast recorded as alert %s\n", a.ID)
			return nil
		})
	},
}

var floodLevelsCmd = &cobra.Command{
	Use:   "flood-levels <current> <predicted> [time-to-peak]",
	Short: "Record the current and predicted water levels",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		current, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid current level %q", args[0])
		}
		predicted, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid predicted level %q", args[1])
		}
		levels := models.FloodLevels{Current: current, Predicted: predicted, TimeToPeak: "N/A"}
		if len(args) == 3 {
			levels.TimeToPeak = args[2]
		}

		return withHub(cmd.Context(), func(_ *livesync.Hub, repo *repository.Repository) error {
			if err := repo.SetFloodLevels(cmd.Context(), levels); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "flood levels set: current %.1f m, predicted %.1f m, peak %s\n",
				levels.Current, levels.Predicted, levels.TimeToPeak)
			return nil
		})
	},
}

func init() {
	alertsListCmd.Flags().String("type", "", "only alerts of this type (info, warning, error, success)")
	alertsListCmd.Flags().String("district", "", "only alerts for this district")
	alertsListCmd.Flags().Bool("read", false, "filter by read state")
	alertsListCmd.Flags().Int("limit", 50, "maximum number of alerts")
	alertsWatchCmd.Flags().String("type", "", "only events for alerts of this type")
	alertsClearCmd.Flags().Bool("yes", false, "confirm deleting every alert")
	broadcastCmd.Flags().String("district", "", "target district (all regions when empty)")

	alertsCmd.AddCommand(alertsListCmd, alertsWatchCmd, alertsReadCmd, alertsClearCmd)
}
