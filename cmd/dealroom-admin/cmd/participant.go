package cmd

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/dealroom/api/pkg/domain/permission"
)

// participantResponse mirrors the API participant payload.
type participantResponse struct {
	ParticipantID string                                        `json:"participant_id" yaml:"participant_id"`
	DealID        string                                        `json:"deal_id" yaml:"deal_id"`
	RoleType      string                                        `json:"role_type" yaml:"role_type"`
	Permissions   map[permission.Key]bool                       `json:"permissions" yaml:"permissions"`
	Visibility    map[permission.VisibilityKey]permission.Scope `json:"visibility" yaml:"visibility"`
	Overrides     []permission.Override                         `json:"overrides" yaml:"overrides"`
	Effective     map[permission.Key]bool                       `json:"effective" yaml:"effective"`
	Drifted       bool                                          `json:"drifted" yaml:"drifted"`
	Version       int                                           `json:"version" yaml:"version"`
	UpdatedAt     time.Time                                     `json:"updated_at" yaml:"updated_at"`
}

func newParticipantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "participant",
		Aliases: []string{"p"},
		Short:   "Manage participant permissions through the API",
	}

	cmd.AddCommand(
		participantCommand("get ID", "Show a participant's permissions", 1,
			func(args []string) (string, string, any) {
				return http.MethodGet, permissionsPath(args[0], ""), nil
			}),
		participantCommand("apply-preset ID PRESET", "Replace a participant's permissions with a preset", 2,
			func(args []string) (string, string, any) {
				return http.MethodPut, permissionsPath(args[0], "/preset"), map[string]string{"preset": args[1]}
			}),
		participantCommand("toggle ID KEY", "Flip one permission", 2,
			func(args []string) (string, string, any) {
				return http.MethodPost, permissionsPath(args[0], "/toggle"), map[string]string{"key": args[1]}
			}),
		participantCommand("visibility ID KEY SCOPE", "Set the scope of one visibility key", 3,
			func(args []string) (string, string, any) {
				return http.MethodPut, permissionsPath(args[0], "/visibility"), map[string]string{"key": args[1], "scope": args[2]}
			}),
		participantCommand("enable-all ID", "Grant every permission", 1,
			func(args []string) (string, string, any) {
				return http.MethodPost, permissionsPath(args[0], "/enable-all"), nil
			}),
		participantCommand("disable-all ID", "Deny every permission and hide every category", 1,
			func(args []string) (string, string, any) {
				return http.MethodPost, permissionsPath(args[0], "/disable-all"), nil
			}),
		newParticipantCreateCmd(),
		newParticipantRemoveCmd(),
		newParticipantOverridesCmd(),
		newParticipantAuditCmd(),
	)
	return cmd
}

// participantCommand builds a command that sends one request and prints the
// returned participant.
func participantCommand(use, short string, nargs int, request func(args []string) (string, string, any)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			method, path, body := request(args)
			return sendParticipant(cmd, method, path, body)
		},
	}
}

// sendParticipant sends one request and prints the returned participant.
func sendParticipant(cmd *cobra.Command, method, path string, body any) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	var resp participantResponse
	if err := client.Do(cmd.Context(), method, path, body, &resp); err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), resp, func(w io.Writer) {
		printParticipant(w, resp)
	})
}

func newParticipantCreateCmd() *cobra.Command {
	var preset string
	cmd := &cobra.Command{
		Use:   "create PARTICIPANT_ID DEAL_ID",
		Short: "Add a participant to a deal",
		Long:  "Create seeds the participant from --preset, or from the server's default preset.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"participant_id": args[0], "deal_id": args[1]}
			if preset != "" {
				body["preset"] = preset
			}
			return sendParticipant(cmd, http.MethodPost, "/api/v1/participants", body)
		},
	}
	cmd.Flags().StringVar(&preset, "preset", "", "Preset to seed the participant from")
	return cmd
}

func newParticipantRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove ID",
		Short: "Delete a participant's permissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			if err := client.Do(cmd.Context(), http.MethodDelete, permissionsPath(args[0], ""), nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed participant %s\n", args[0])
			return nil
		},
	}
}

func newParticipantOverridesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overrides",
		Short: "Manage a participant's permission overrides",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add ID KEY=BOOL",
			Short: "Add or replace one override",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				overrides, err := parseOverrides(args[1:])
				if err != nil {
					return err
				}
				return sendParticipant(cmd, http.MethodPost, permissionsPath(args[0], "/overrides"), overrideBody(overrides[0]))
			},
		},
		&cobra.Command{
			Use:   "set ID [KEY=BOOL]...",
			Short: "Replace the whole override list",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				overrides, err := parseOverrides(args[1:])
				if err != nil {
					return err
				}
				list := make([]map[string]any, len(overrides))
				for i, o := range overrides {
					list[i] = overrideBody(o)
				}
				return sendParticipant(cmd, http.MethodPut, permissionsPath(args[0], "/overrides"), map[string]any{"overrides": list})
			},
		},
		participantCommand("clear ID", "Drop every override", 1,
			func(args []string) (string, string, any) {
				return http.MethodDelete, permissionsPath(args[0], "/overrides"), nil
			}),
	)
	return cmd
}

func overrideBody(o permission.Override) map[string]any {
	return map[string]any{"key": o.Key.String(), "granted": o.Granted}
}

func permissionsPath(participantID, suffix string) string {
	return "/api/v1/participants/" + url.PathEscape(participantID) + "/permissions" + suffix
}

func printParticipant(w io.Writer, p participantResponse) {
	fmt.Fprintf(w, "Participant:  %s\n", p.ParticipantID)
	fmt.Fprintf(w, "Deal:         %s\n", p.DealID)
	fmt.Fprintf(w, "Role:         %s\n", p.RoleType)
	fmt.Fprintf(w, "Drifted:      %s\n", boolToStr(p.Drifted))
	fmt.Fprintf(w, "Version:      %d\n\n", p.Version)

	keys := make([]permission.Key, 0, len(p.Permissions))
	for k := range p.Permissions {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	t := newTable(w, "PERMISSION", "BASE", "EFFECTIVE")
	for _, k := range keys {
		t.AddRow(k.String(), boolToStr(p.Permissions[k]), boolToStr(p.Effective[k]))
	}
	t.Flush()

	vkeys := make([]permission.VisibilityKey, 0, len(p.Visibility))
	for k := range p.Visibility {
		vkeys = append(vkeys, k)
	}
	slices.Sort(vkeys)

	fmt.Fprintln(w)
	t = newTable(w, "VISIBILITY", "SCOPE")
	for _, k := range vkeys {
		t.AddRow(k.String(), p.Visibility[k].String())
	}
	t.Flush()

	if len(p.Overrides) > 0 {
		fmt.Fprintln(w)
		t = newTable(w, "OVERRIDE", "GRANTED")
		for _, o := range p.Overrides {
			t.AddRow(o.Key.String(), boolToStr(o.Granted))
		}
		t.Flush()
	}
}

// auditEntry mirrors one audit event in the API listing.
type auditEntry struct {
	ID         string             `json:"id" yaml:"id"`
	ActorID    string             `json:"actor_id" yaml:"actor_id"`
	Action     string             `json:"action" yaml:"action"`
	RoleType   string             `json:"role_type" yaml:"role_type"`
	Changes    permission.Changes `json:"changes" yaml:"changes"`
	OccurredAt time.Time          `json:"occurred_at" yaml:"occurred_at"`
}

type auditPage struct {
	Data       []auditEntry `json:"data" yaml:"data"`
	Total      int64        `json:"total" yaml:"total"`
	Page       int          `json:"page" yaml:"page"`
	TotalPages int          `json:"total_pages" yaml:"total_pages"`
}

func newParticipantAuditCmd() *cobra.Command {
	var (
		page, perPage int
		actions       []string
	)
	cmd := &cobra.Command{
		Use:   "audit ID",
		Short: "Show a participant's permission audit log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient()
			if err != nil {
				return err
			}

			q := url.Values{}
			q.Set("page", strconv.Itoa(page))
			q.Set("per_page", strconv.Itoa(perPage))
			for _, a := range actions {
				q.Add("action", a)
			}

			var resp auditPage
			if err := client.Do(cmd.Context(), http.MethodGet, permissionsPath(args[0], "/audit")+"?"+q.Encode(), nil, &resp); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), resp, func(w io.Writer) {
				t := newTable(w, "TIME", "ACTION", "ACTOR", "ROLE", "GRANTED", "REVOKED")
				for _, e := range resp.Data {
					t.AddRow(
						e.OccurredAt.Format(time.RFC3339),
						e.Action,
						e.ActorID,
						e.RoleType,
						strconv.Itoa(len(e.Changes.Granted)),
						strconv.Itoa(len(e.Changes.Revoked)),
					)
				}
				t.Flush()
				fmt.Fprintf(w, "\nPage %d of %d (%d events)\n", resp.Page, resp.TotalPages, resp.Total)
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&perPage, "per-page", 20, "Events per page")
	cmd.Flags().StringArrayVar(&actions, "action", nil, "Only show this action (repeatable)")
	return cmd
}
