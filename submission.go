package gallerypress

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
)

// handleSubmission runs the submission pipeline: validate, upload the two
// images in parallel, compose the article body, publish it, then attach the
// contact email as a best-effort metafield.
func (a *App) handleSubmission(c echo.Context) error {
	var sub Submission
	if err := c.Bind(&sub); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
	}
	if missing := missingFields(sub); len(missing) > 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Error: "missing required fields: " + strings.Join(missing, ", "),
		})
	}
	ctx := c.Request().Context()

	// The clean and logo uploads populate distinct template slots, so they
	// run independently; a failure of one only drops its own image block.
	type slot struct {
		payload string
		name    string
		url     string
		err     error
	}
	slots := [2]*slot{
		{payload: sub.CleanImage, name: "clean"},
		{payload: sub.LogoImage, name: "logo"},
	}
	var g errgroup.Group
	for _, s := range slots {
		g.Go(func() error {
			s.url, s.err = a.uploadImage(ctx, sub, s.payload, s.name)
			if s.err != nil {
				c.Logger().Errorf("upload %s image: %v", s.name, s.err)
			}
			return nil
		})
	}
	_ = g.Wait()
	cleanURL, logoURL := slots[0].url, slots[1].url

	body := ComposeArticleBody(sub, cleanURL, logoURL)
	rec, err := a.shopify.CreateArticle(ctx, ArticleTitle(sub), body, a.cfg.ArticleTags, a.cfg.PublishArticles)
	if err != nil {
		return upstreamJSON(c, "creating article failed", err)
	}

	// Best-effort side channel: the article exists, so a failed metafield
	// write must never fail the request.
	if sub.Email != "" {
		if err := a.shopify.CreateMetafield(ctx, rec.ID, "submission", "contact_email", sub.Email); err != nil {
			c.Logger().Errorf("record contact email for article %d: %v", rec.ID, err)
		}
	}

	articleURL := rec.CanonicalURL(a.cfg.ShopDomain)
	a.logDelivery(c, Delivery{
		Kind:       "article",
		ArticleID:  rec.ID,
		ArticleURL: articleURL,
		Nickname:   sub.Nickname,
		CleanURL:   cleanURL,
		LogoURL:    logoURL,
	})

	return c.JSON(http.StatusOK, submissionResponse{
		OK:         true,
		ArticleID:  rec.ID,
		ArticleURL: articleURL,
		Files:      submissionFiles{CleanURL: cleanURL, LogoURL: logoURL},
	})
}

// uploadImage resolves one image payload to a public URL. An absent or
// sub-threshold payload short-circuits to "" without any network call.
func (a *App) uploadImage(ctx context.Context, sub Submission, payload, slot string) (string, error) {
	data, err := DecodePayload(payload)
	if err != nil {
		return "", err
	}
	if data == nil {
		return "", nil
	}
	data = NormalizeImage(data)
	filename := AssetFilename(sub.Timestamp, sub.Nickname, slot)
	return a.upload.Upload(ctx, filename, data)
}

func missingFields(sub Submission) []string {
	var missing []string
	if strings.TrimSpace(sub.Timestamp) == "" {
		missing = append(missing, "timestamp")
	}
	if strings.TrimSpace(sub.CleanImage) == "" && strings.TrimSpace(sub.LogoImage) == "" {
		missing = append(missing, "cleanImage or logoImage")
	}
	return missing
}
