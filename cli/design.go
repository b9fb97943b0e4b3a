package cli

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/reloom/reloom-go/designs"
)

func newDesignCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "design",
		Short: "Show, publish, and interact with designs",
	}

	cmd.AddCommand(
		newDesignShowCmd(app),
		newDesignCreateCmd(app),
		newDesignDeleteCmd(app),
		newDesignDuplicateCmd(app),
		newDesignLikeCmd(app),
		newDesignLikersCmd(app),
		newDesignCommentCmd(app),
		newDesignCommentsCmd(app),
		newDesignImageCmd(app),
	)

	return cmd
}

func newDesignShowCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <design-id>",
		Short: "Show a single design",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := app.designs.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, d)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n", d.Title)
			if d.Author != nil {
				fmt.Fprintf(out, "by @%s\n", d.Author.Username)
			}
			fmt.Fprintf(out, "\n%s\n", d.Description)
			if d.Materials != "" {
				fmt.Fprintf(out, "\nMaterials: %s\n", d.Materials)
			}
			for _, img := range d.Images {
				marker := " "
				if img.IsPrimary {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s  %s\n", marker, img.ID, img.URL)
			}
			if d.Stats != nil {
				fmt.Fprintf(out, "\n%d likes, %d comments, %d views\n",
					d.Stats.Likes, d.Stats.Comments, d.Stats.Views)
			}
			// Reading a design in the terminal counts as engagement.
			app.designs.TrackView(d.ID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

func newDesignCreateCmd(app *app) *cobra.Command {
	var (
		title       string
		description string
		materials   string
		imagePaths  []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Publish a new design",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.requireLogin(); err != nil {
				return err
			}
			images, err := readImages(imagePaths)
			if err != nil {
				return err
			}
			d, err := app.designs.Create(cmd.Context(), designs.CreateInput{
				Title:       title,
				Description: description,
				Materials:   materials,
				Images:      images,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %q as %s\n", d.Title, d.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "design title")
	cmd.Flags().StringVar(&description, "description", "", "design description")
	cmd.Flags().StringVar(&materials, "materials", "", "materials used")
	cmd.Flags().StringArrayVar(&imagePaths, "image", nil, "image file (repeatable, first is primary)")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("description")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}

func newDesignDeleteCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <design-id>",
		Short: "Delete one of your designs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireLogin(); err != nil {
				return err
			}
			if err := app.designs.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Deleted.")
			return nil
		},
	}
}

func newDesignDuplicateCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "duplicate <design-id>",
		Short: "Duplicate a design as a starting point for your own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireLogin(); err != nil {
				return err
			}
			d, err := app.designs.Duplicate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s from %s\n", d.ID, args[0])
			return nil
		},
	}
}

func newDesignLikeCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "like <design-id>",
		Short: "Toggle your like on a design",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireLogin(); err != nil {
				return err
			}
			liked, err := app.designs.ToggleLike(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if liked {
				fmt.Fprintln(cmd.OutOrStdout(), "Liked.")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Unliked.")
			}
			return nil
		},
	}
}

func newDesignLikersCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "likers <design-id>",
		Short: "List who liked a design",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			likers, err := app.designs.Likers(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, likers)
			}
			for _, p := range likers {
				fmt.Fprintf(cmd.OutOrStdout(), "@%s\n", p.Username)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

func newDesignCommentCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "comment <design-id> <text>",
		Short: "Comment on a design",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireLogin(); err != nil {
				return err
			}
			if _, err := app.designs.Comments(cmd.Context(), args[0]); err != nil {
				return err
			}
			if _, err := app.designs.PostComment(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Comment posted.")
			return nil
		},
	}
}

func newDesignCommentsCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "comments <design-id>",
		Short: "List comments on a design",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comments, err := app.designs.Comments(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, comments)
			}
			for _, c := range comments {
				fmt.Fprintf(cmd.OutOrStdout(), "@%s  %s\n  %s\n",
					c.Author.Username, c.CreatedAt.Local().Format("2006-01-02 15:04"), c.Content)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

func newDesignImageCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Manage a design's images",
	}

	upload := &cobra.Command{
		Use:   "add <design-id> <file>",
		Short: "Add an image to a design",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireLogin(); err != nil {
				return err
			}
			img, err := readImage(args[1])
			if err != nil {
				return err
			}
			d, err := app.designs.UploadImage(cmd.Context(), args[0], img)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Design now has %d images.\n", len(d.Images))
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "remove <design-id> <image-id>",
		Short: "Remove an image from a design",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireLogin(); err != nil {
				return err
			}
			if err := app.designs.DeleteImage(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Image removed.")
			return nil
		},
	}

	cmd.AddCommand(upload, remove)
	return cmd
}

func readImages(paths []string) ([]designs.ImageFile, error) {
	images := make([]designs.ImageFile, 0, len(paths))
	for _, p := range paths {
		img, err := readImage(p)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

func readImage(path string) (designs.ImageFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return designs.ImageFile{}, fmt.Errorf("read image %s: %w", path, err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return designs.ImageFile{
		FileName:    filepath.Base(path),
		ContentType: contentType,
		Data:        data,
	}, nil
}
