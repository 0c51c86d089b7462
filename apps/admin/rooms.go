package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/trezcool/masomo-chat/core"
	"github.com/trezcool/masomo-chat/core/chat"
)

func (cli *commandLine) roomsCmd() *cobra.Command {
	var byName bool

	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "List chat rooms with their participant counts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var orderings []core.DBOrdering
			if byName {
				orderings = append(orderings, core.DBOrdering{Field: "name", Ascending: true})
			}
			rooms, err := cli.chatRepo.QueryRooms(cmd.Context(), orderings...)
			if err != nil {
				return err
			}
			cli.printRooms(rooms)
			return nil
		},
	}
	cmd.Flags().BoolVar(&byName, "by-name", false, "Sort rooms by name")
	return cmd
}

func (cli *commandLine) printRooms(rooms []chat.RoomSummary) {
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tPARTICIPANTS\tCREATED")
	for _, room := range rooms {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\n", room.Name, room.ParticipantCount, room.CreatedAt.Format(time.RFC3339))
	}
	_ = w.Flush()
}
