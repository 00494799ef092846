package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/your-org/faceid/internal/models"
)

var listRoom string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled identities",
	RunE: func(cmd *cobra.Command, args []string) error {
		var filter models.AttributeFilter
		if listRoom != "" {
			filter = models.AttributeFilter{Key: "room", Value: listRoom}
		}
		identities, err := db.ListIdentities(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if len(identities) == 0 {
			fmt.Println("No identities found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTUDENT ID\tROOM\tFACES\tVERSION\tREGISTERED")
		for _, id := range identities {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
				id.ID, id.Profile.Name, id.Profile.StudentID, id.Profile.Room,
				id.FaceCount, id.EmbeddingVersion, id.RegisteredAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

func init() {
	listCmd.Flags().StringVar(&listRoom, "room", "", "only identities in this room")
	rootCmd.AddCommand(listCmd)
}
