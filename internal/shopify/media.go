package shopify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// pageSize is the number of files requested per listing page.
const pageSize = 50

// MediaAsset is one storefront image from the files listing.
type MediaAsset struct {
	ID       string
	AltText  string
	URL      string
	MimeType string
	// Filename is the URL's final path segment with any query string
	// stripped. Assets without a URL get a placeholder from the GID tail.
	Filename string
}

const scopesQuery = `query {
  currentAppInstallation {
    accessScopes {
      handle
    }
  }
}`

const listFilesQuery = `query ListImageFiles($first: Int!, $cursor: String) {
  files(first: $first, after: $cursor, query: "media_type:IMAGE") {
    edges {
      node {
        ... on MediaImage {
          id
          alt
          mimeType
          image {
            url
          }
        }
      }
    }
    pageInfo {
      hasNextPage
      endCursor
    }
  }
}`

// VerifyScopes confirms the installation's token carries every access
// scope in RequiredScopes, returning an error naming the first missing
// one.
func (c *Client) VerifyScopes(ctx context.Context) error {
	var data struct {
		CurrentAppInstallation *struct {
			AccessScopes []struct {
				Handle string `json:"handle"`
			} `json:"accessScopes"`
		} `json:"currentAppInstallation"`
	}

	if err := c.post(ctx, scopesQuery, nil, &data); err != nil {
		return err
	}
	if data.CurrentAppInstallation == nil {
		return fmt.Errorf("unexpected response shape")
	}

	granted := make(map[string]bool, len(data.CurrentAppInstallation.AccessScopes))
	for _, s := range data.CurrentAppInstallation.AccessScopes {
		granted[s.Handle] = true
	}

	for _, want := range RequiredScopes {
		if !granted[want] {
			return fmt.Errorf("access token missing required scope %s", want)
		}
	}

	log.Debug().Strs("scopes", RequiredScopes).Msg("Access scopes verified")
	return nil
}

// ListAllImages pages through every storefront image file and returns the
// accumulated assets in listing order.
func (c *Client) ListAllImages(ctx context.Context) ([]MediaAsset, error) {
	var assets []MediaAsset
	var cursor string

	for page := 1; ; page++ {
		vars := map[string]any{"first": pageSize}
		if cursor != "" {
			vars["cursor"] = cursor
		}

		var data struct {
			Files *struct {
				Edges []struct {
					Node struct {
						ID       string `json:"id"`
						Alt      string `json:"alt"`
						MimeType string `json:"mimeType"`
						Image    struct {
							URL string `json:"url"`
						} `json:"image"`
					} `json:"node"`
				} `json:"edges"`
				PageInfo struct {
					HasNextPage bool   `json:"hasNextPage"`
					EndCursor   string `json:"endCursor"`
				} `json:"pageInfo"`
			} `json:"files"`
		}

		if err := c.post(ctx, listFilesQuery, vars, &data); err != nil {
			return nil, fmt.Errorf("list images page %d: %w", page, err)
		}
		if data.Files == nil {
			return nil, fmt.Errorf("list images page %d: unexpected response shape", page)
		}

		for _, edge := range data.Files.Edges {
			node := edge.Node
			// Non-image file nodes fall outside the inline fragment and
			// decode empty.
			if node.ID == "" {
				continue
			}
			assets = append(assets, MediaAsset{
				ID:       node.ID,
				AltText:  node.Alt,
				URL:      node.Image.URL,
				MimeType: node.MimeType,
				Filename: deriveFilename(node.Image.URL, node.ID),
			})
		}

		log.Debug().
			Int("page", page).
			Int("totalAssets", len(assets)).
			Bool("hasNextPage", data.Files.PageInfo.HasNextPage).
			Msg("Media page fetched")

		if !data.Files.PageInfo.HasNextPage {
			break
		}
		cursor = data.Files.PageInfo.EndCursor
	}

	log.Info().Int("count", len(assets)).Msg("Storefront images listed")
	return assets, nil
}

// deriveFilename returns the final path segment of a media URL with any
// query string or fragment stripped.
func deriveFilename(rawURL, gid string) string {
	if rawURL == "" {
		return "media-" + gidTail(gid)
	}

	trimmed := rawURL
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	if trimmed == "" {
		return "media-" + gidTail(gid)
	}
	return trimmed
}

// gidTail returns the numeric tail of a GID such as
// gid://shopify/MediaImage/123.
func gidTail(gid string) string {
	if i := strings.LastIndex(gid, "/"); i >= 0 {
		return gid[i+1:]
	}
	return gid
}
