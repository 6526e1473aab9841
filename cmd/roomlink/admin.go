package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"roomlink/internal/core/domain"

	"github.com/spf13/cobra"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administration commands (administrator accounts only)",
}

func adminLeaf(use, short string, args cobra.PositionalArgs, run func(cmd *cobra.Command, args []string) error) *cobra.Command {
	return &cobra.Command{Use: use, Short: short, Args: args, RunE: run}
}

func init() {
	adminCmd.AddCommand(
		adminLeaf("users", "List users", cobra.NoArgs, func(cmd *cobra.Command, args []string) error {
			users, err := a.admin.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			printUsers(cmd.OutOrStdout(), users)
			return nil
		}),
		adminLeaf("approve-user <id>", "Approve a pending user", cobra.ExactArgs(1), func(cmd *cobra.Command, args []string) error {
			return done(cmd, a.admin.ApproveUser(cmd.Context(), domain.UserID(args[0])), "Approved user "+args[0])
		}),
		adminLeaf("block-user <id>", "Block a user", cobra.ExactArgs(1), func(cmd *cobra.Command, args []string) error {
			return done(cmd, a.admin.BlockUser(cmd.Context(), domain.UserID(args[0])), "Blocked user "+args[0])
		}),
		adminLeaf("blocked-ips", "List blocked IP addresses", cobra.NoArgs, func(cmd *cobra.Command, args []string) error {
			ips, err := a.admin.ListBlockedIPs(cmd.Context())
			if err != nil {
				return err
			}
			w := table(cmd.OutOrStdout(), "ADDRESS\tREASON\tBLOCKED")
			for _, ip := range ips {
				fmt.Fprintf(w, "%s\t%s\t%s\n", ip.Address, ip.Reason, stamp(ip.BlockedAt))
			}
			return w.Flush()
		}),
		adminLeaf("block-ip <address> [reason]", "Block an IP address", cobra.MinimumNArgs(1), func(cmd *cobra.Command, args []string) error {
			reason := strings.Join(args[1:], " ")
			return done(cmd, a.admin.BlockIP(cmd.Context(), args[0], reason), "Blocked "+args[0])
		}),
		adminLeaf("unblock-ip <address>", "Unblock an IP address", cobra.ExactArgs(1), func(cmd *cobra.Command, args []string) error {
			return done(cmd, a.admin.UnblockIP(cmd.Context(), args[0]), "Unblocked "+args[0])
		}),
		adminLeaf("rooms", "List all rooms", cobra.NoArgs, func(cmd *cobra.Command, args []string) error {
			rooms, err := a.admin.ListRooms(cmd.Context())
			if err != nil {
				return err
			}
			printRooms(cmd.OutOrStdout(), rooms)
			return nil
		}),
		adminLeaf("close-room <code>", "Close a room", cobra.ExactArgs(1), func(cmd *cobra.Command, args []string) error {
			return done(cmd, a.admin.CloseRoom(cmd.Context(), domain.RoomCode(args[0])), "Closed room "+args[0])
		}),
		adminLeaf("requests", "List access requests", cobra.NoArgs, func(cmd *cobra.Command, args []string) error {
			reqs, err := a.admin.ListAccessRequests(cmd.Context())
			if err != nil {
				return err
			}
			w := table(cmd.OutOrStdout(), "ID\tEMAIL\tREASON\tREQUESTED\tAPPROVED")
			for _, r := range reqs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", r.ID, r.Email, r.Reason, stamp(r.RequestedAt), r.Approved)
			}
			return w.Flush()
		}),
		adminLeaf("approve-request <id>", "Approve an access request", cobra.ExactArgs(1), func(cmd *cobra.Command, args []string) error {
			decision, err := a.admin.ApproveRequest(cmd.Context(), domain.RequestID(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Approved request", args[0])
			if decision != nil && decision.TempPassword != "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Temporary password:", decision.TempPassword)
			}
			return nil
		}),
		adminLeaf("deny-request <id>", "Deny an access request", cobra.ExactArgs(1), func(cmd *cobra.Command, args []string) error {
			return done(cmd, a.admin.DenyRequest(cmd.Context(), domain.RequestID(args[0])), "Denied request "+args[0])
		}),
		adminLeaf("dashboard", "Show counts of users, rooms and blocks", cobra.NoArgs, func(cmd *cobra.Command, args []string) error {
			d, err := a.admin.Dashboard(cmd.Context())
			if err != nil {
				return err
			}
			a.analytics.TrackVisit(cmd.Context(), "/admin", "cli")
			w := table(cmd.OutOrStdout(), "")
			fmt.Fprintf(w, "users\t%d (%d pending, %d blocked)\n", d.Users, d.PendingUsers, d.BlockedUsers)
			fmt.Fprintf(w, "rooms\t%d (%d active)\n", d.Rooms, d.ActiveRooms)
			fmt.Fprintf(w, "blocked ips\t%d\n", d.BlockedIPs)
			fmt.Fprintf(w, "access requests\t%d pending\n", d.PendingRequests)
			return w.Flush()
		}),
	)
}

func done(cmd *cobra.Command, err error, msg string) error {
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}

func table(out io.Writer, header string) *tabwriter.Writer {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if header != "" {
		fmt.Fprintln(w, header)
	}
	return w
}

func stamp(ts domain.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04")
}

func printUsers(out io.Writer, users []domain.ManagedUser) {
	w := table(out, "ID\tUSERNAME\tEMAIL\tAPPROVED\tBLOCKED\tLAST LOGIN")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%t\t%s\n", u.ID, u.Username, u.Email, u.Approved, u.Blocked, stamp(u.LastLogin))
	}
	w.Flush()
}
