package content_test

import (
	"testing"

	"crm-social/domain/model"
	"crm-social/infrastructure/clients/content"

	"github.com/stretchr/testify/assert"
)

func TestCaption(t *testing.T) {
	tests := []struct {
		name         string
		req          *model.PublishRequest
		includeTitle bool
		want         string
	}{
		{
			name: "body_hashtags_mentions",
			req: &model.PublishRequest{
				Body:     "Grand opening this weekend",
				Hashtags: []string{"sale", "#Sale", " #store "},
				Mentions: []string{"acme", "@acme"},
			},
			want: "Grand opening this weekend\n\n#sale #store\n\n@acme",
		},
		{
			name:         "title_included_and_existing_tags_skipped",
			req:          &model.PublishRequest{Title: "Launch", Body: "New menu #food", Hashtags: []string{"food", "drinks"}},
			includeTitle: true,
			want:         "Launch\n\nNew menu #food\n\n#drinks",
		},
		{
			name: "title_dropped_when_not_requested",
			req:  &model.PublishRequest{Title: "Launch", Body: "Hello"},
			want: "Hello",
		},
		{
			name: "nil_request",
			req:  nil,
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, content.Caption(tt.req, tt.includeTitle))
		})
	}
}

func TestExtractHashtags(t *testing.T) {
	assert.Equal(t, []string{"#alkitab", "#grateful_2"}, content.ExtractHashtags("verse #alkitab and #grateful_2! # alone"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", content.Truncate("short", 10))
	assert.Equal(t, "abcdefg...", content.Truncate("abcdefghijklmnop", 10))
}
