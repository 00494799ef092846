package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/your-org/faceid/internal/models"
	"github.com/your-org/faceid/internal/recognition"
	"github.com/your-org/faceid/internal/vision"
)

var recognizeRoom string

var recognizeCmd = &cobra.Command{
	Use:   "recognize <image>",
	Short: "Match the most confident face in an image against enrolled identities",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		img, err := vision.DecodeImage(data)
		if err != nil {
			return err
		}

		extractor, err := openExtractor()
		if err != nil {
			return err
		}
		defer extractor.Close()

		var filter models.AttributeFilter
		if recognizeRoom != "" {
			filter = models.AttributeFilter{Key: "room", Value: recognizeRoom}
		}

		matcher := recognition.NewMatcher(extractor, db, cfg.Matching.Threshold)
		res, err := matcher.Recognize(cmd.Context(), img, filter)
		if err != nil {
			return err
		}

		switch res.Outcome {
		case recognition.OutcomeRecognized:
			fmt.Printf("Recognized %s (student %s) %s=%.4f threshold=%.2f\n",
				res.Identity.Profile.Name, res.Identity.Profile.StudentID,
				res.Version.Metric, res.Confidence, res.Threshold)
		case recognition.OutcomeNotRecognized:
			fmt.Printf("No match: best %s=%.4f threshold=%.2f over %d embeddings\n",
				res.Version.Metric, res.Confidence, res.Threshold, res.CandidatesScored)
		default:
			fmt.Println("No face detected")
		}
		return nil
	},
}

func init() {
	recognizeCmd.Flags().StringVar(&recognizeRoom, "room", "", "only match identities in this room")
	rootCmd.AddCommand(recognizeCmd)
}
