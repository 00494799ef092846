package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/your-org/faceid/internal/models"
	"github.com/your-org/faceid/internal/recognition"
)

var enrollProfile models.Profile

var enrollCmd = &cobra.Command{
	Use:   "enroll <image>...",
	Short: "Enroll an identity from one or more face images",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		images := make([]recognition.EnrollImage, 0, len(args))
		for _, p := range args {
			data, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			images = append(images, recognition.EnrollImage{Name: filepath.Base(p), Data: data})
		}

		extractor, err := openExtractor()
		if err != nil {
			return err
		}
		defer extractor.Close()

		objects, err := openObjects(ctx)
		if err != nil {
			return err
		}

		var enroller *recognition.Enroller
		if objects != nil {
			enroller = recognition.NewEnroller(extractor, db, objects)
		} else {
			enroller = recognition.NewEnroller(extractor, db, nil)
		}

		identity, err := enroller.Enroll(ctx, enrollProfile, images)
		if err != nil {
			return err
		}
		fmt.Printf("Enrolled %s (%s) with %d of %d images\n",
			identity.Profile.Name, identity.ID, len(identity.Faces), len(images))
		return nil
	},
}

func init() {
	f := enrollCmd.Flags()
	f.StringVar(&enrollProfile.Name, "name", "", "full name (required)")
	f.StringVar(&enrollProfile.StudentID, "student-id", "", "student id (required)")
	f.StringVar(&enrollProfile.Class, "class", "", "class")
	f.StringVar(&enrollProfile.Department, "department", "", "department")
	f.StringVar(&enrollProfile.Room, "room", "", "room")
	rootCmd.AddCommand(enrollCmd)
}
