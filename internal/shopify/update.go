package shopify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

const updateAltMutation = `mutation UpdateImageAlt($id: ID!, $alt: String!) {
  fileUpdate(files: [{id: $id, alt: $alt}]) {
    files {
      id
    }
    userErrors {
      field
      message
    }
  }
}`

type userError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// UpdateAltText sets the alt text on a single media asset.
func (c *Client) UpdateAltText(ctx context.Context, id, alt string) error {
	var data struct {
		FileUpdate *struct {
			Files []struct {
				ID string `json:"id"`
			} `json:"files"`
			UserErrors []userError `json:"userErrors"`
		} `json:"fileUpdate"`
	}

	vars := map[string]any{"id": id, "alt": alt}
	if err := c.post(ctx, updateAltMutation, vars, &data); err != nil {
		return fmt.Errorf("update alt text for %s: %w", id, err)
	}
	if data.FileUpdate == nil {
		return fmt.Errorf("update alt text for %s: unexpected response shape", id)
	}
	if len(data.FileUpdate.UserErrors) > 0 {
		return fmt.Errorf("update alt text for %s: %s", id, joinUserErrors(data.FileUpdate.UserErrors))
	}

	log.Debug().Str("imageId", id).Msg("Alt text updated")
	return nil
}

// joinUserErrors flattens mutation userErrors into "field: message" pairs.
func joinUserErrors(errs []userError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		if len(e.Field) > 0 {
			parts = append(parts, strings.Join(e.Field, ".")+": "+e.Message)
		} else {
			parts = append(parts, e.Message)
		}
	}
	return strings.Join(parts, "; ")
}
