package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rubiojr/quill/pkg/api"
	"github.com/rubiojr/quill/pkg/feed"
	"github.com/rubiojr/quill/pkg/i18n"
	"github.com/rubiojr/quill/pkg/models"
	"github.com/urfave/cli/v3"
)

// PostsCommand creates the posts command
func PostsCommand() *cli.Command {
	return &cli.Command{
		Name:  "posts",
		Usage: "Browse and manage posts",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List posts",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "search", Aliases: []string{"q"}, Usage: "Full-text search"},
					&cli.StringFlag{Name: "tag", Usage: "Only posts with this tag"},
					&cli.StringFlag{Name: "author", Usage: "Only posts by this user id"},
					&cli.BoolFlag{Name: "feed", Usage: "Posts from people you follow"},
					&cli.IntFlag{Name: "page", Value: 1, Usage: "Page number"},
					&cli.IntFlag{Name: "limit", Value: 10, Usage: "Posts per page"},
				},
				Action: withSession(listPosts),
			},
			{
				Name:      "show",
				Usage:     "Show a post and its comments",
				ArgsUsage: "<post-id>",
				Action:    withSession(showPost),
			},
			{
				Name:  "create",
				Usage: "Publish a post",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Required: true},
					&cli.StringFlag{Name: "content", Usage: "Body text, or @file to read it from a file"},
					&cli.StringFlag{Name: "cover", Usage: "Cover image: a URL or a local file to upload"},
					&cli.StringSliceFlag{Name: "tag"},
				},
				Action: withSession(createPost),
			},
			{
				Name:      "delete",
				Usage:     "Delete one of your posts",
				ArgsUsage: "<post-id>",
				Action: withSession(func(ctx context.Context, c *cli.Command, s *session) error {
					id := c.Args().First()
					if id == "" {
						return errors.New("post id required")
					}
					if err := s.client.DeletePost(ctx, id); err != nil {
						return fmt.Errorf("deleting post: %w", err)
					}
					fmt.Fprintf(s.stdout, "Deleted %s\n", id)
					return nil
				}),
			},
		},
	}
}

// CommentCommand creates the comment command
func CommentCommand() *cli.Command {
	return &cli.Command{
		Name:      "comment",
		Usage:     "Comment on a post",
		ArgsUsage: "<post-id> <text>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "delete", Usage: "Delete the comment with this id instead"},
		},
		Action: withSession(commentOnPost),
	}
}

func listPosts(ctx context.Context, c *cli.Command, s *session) error {
	var (
		page *api.PostPage
		err  error
	)
	if c.Bool("feed") {
		page, err = s.client.Feed(ctx, c.Int("page"))
	} else {
		page, err = s.client.ListPosts(ctx, api.PostQuery{
			Search:   c.String("search"),
			Tag:      c.String("tag"),
			AuthorID: c.String("author"),
			Page:     c.Int("page"),
			Limit:    c.Int("limit"),
		})
	}
	if err != nil {
		return fmt.Errorf("listing posts: %w", err)
	}
	if len(page.Posts) == 0 {
		fmt.Fprintln(s.stdout, metaStyle.Render("No posts"))
		return nil
	}
	for _, p := range page.Posts {
		fmt.Fprintln(s.stdout, renderPost(p, false))
	}
	if page.TotalPages > 1 {
		fmt.Fprintln(s.stdout, metaStyle.Render(fmt.Sprintf("page %d of %d", page.Page, page.TotalPages)))
	}
	return nil
}

func showPost(ctx context.Context, c *cli.Command, s *session) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("post id required")
	}
	p, err := s.client.GetPost(ctx, id)
	if err != nil {
		return fmt.Errorf("fetching post: %w", err)
	}
	fmt.Fprintln(s.stdout, renderPost(*p, true))

	thread := feed.NewCommentThread(id, models.User{}, s.client, feed.Options{})
	defer thread.Close()
	if err := thread.Load(ctx); err != nil {
		return err
	}
	comments := thread.Comments()
	fmt.Fprintln(s.stdout, headerStyle.Render(s.printer.Sprintf(i18n.MsgComments, len(comments))))
	for _, cm := range comments {
		fmt.Fprintln(s.stdout, renderComment(cm, false))
	}
	return nil
}

func createPost(ctx context.Context, c *cli.Command, s *session) error {
	content := c.String("content")
	if strings.HasPrefix(content, "@") {
		data, err := os.ReadFile(content[1:])
		if err != nil {
			return fmt.Errorf("reading content: %w", err)
		}
		content = string(data)
	}

	cover := c.String("cover")
	if cover != "" && !isURL(cover) {
		up, err := s.uploader()
		if err != nil {
			return fmt.Errorf("uploading cover: %w", err)
		}
		if cover, err = up.UploadFile(ctx, cover); err != nil {
			return err
		}
	}

	p, err := s.client.CreatePost(ctx, models.NewPost{
		Title:      c.String("title"),
		Content:    content,
		CoverImage: cover,
		Tags:       c.StringSlice("tag"),
	})
	if err != nil {
		return fmt.Errorf("creating post: %w", err)
	}
	fmt.Fprintln(s.stdout, renderPost(*p, false))
	return nil
}

func commentOnPost(ctx context.Context, c *cli.Command, s *session) error {
	postID := c.Args().First()
	if postID == "" {
		return errors.New("post id required")
	}
	me, err := s.currentUser(ctx)
	if err != nil {
		return err
	}

	var failed error
	thread := feed.NewCommentThread(postID, *me, s.client, feed.Options{
		OnError: func(err error) { failed = err },
	})
	defer thread.Close()

	if id := c.String("delete"); id != "" {
		return thread.Delete(ctx, id)
	}

	body := strings.Join(c.Args().Tail(), " ")
	if body == "" {
		return errors.New("comment text required")
	}
	tempID := thread.Add(ctx, body)
	for _, cm := range thread.Comments() {
		if cm.ID == tempID {
			fmt.Fprintln(s.stdout, renderComment(cm, true))
		}
	}
	thread.Wait()
	if failed != nil {
		return failed
	}
	fmt.Fprintln(s.stdout, metaStyle.Render("posted"))
	return nil
}
