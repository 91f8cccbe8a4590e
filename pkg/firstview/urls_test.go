package firstview

import (
	"testing"

	errs "fvdownloader/pkg/errors"

	"github.com/stretchr/testify/assert"
)

func TestValidateCollectionURL(t *testing.T) {
	base := "https://www.firstview.com"
	tests := []struct {
		url   string
		valid bool
	}{
		{"https://www.firstview.com/collection_images.php?id=123", true},
		{"  https://firstview.com/collection_images.php?id=9&page=2 ", true},
		{"https://www.firstview.com/collection_images.php", false},
		{"https://www.firstview.com/picture.php?id=123", false},
		{"https://evil.example.com/collection_images.php?id=1", false},
		{"collection_images.php?id=1", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := ValidateCollectionURL(base, tt.url)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.True(t, errs.Is(err, errs.KindInvalidURL))
		})
	}
}

func TestTransformSharedIdentifier(t *testing.T) {
	thumb := "https://www.firstview.com/files/thumbs/S24/chanel/0001.jpg"
	full := "https://www.firstview.com/files/big/S24/chanel/0001.jpg"

	tr := DeriveTransform(thumb, full)
	assert.Equal(t, "https://www.firstview.com/files/", tr.Prefix)
	assert.Equal(t, "thumbs", tr.ThumbMiddle)
	assert.Equal(t, "big", tr.FullMiddle)

	got, ok := tr.Apply(thumb)
	assert.True(t, ok)
	assert.Equal(t, full, got)

	got, ok = tr.Apply("https://www.firstview.com/files/thumbs/S24/chanel/0017.jpg")
	assert.True(t, ok)
	assert.Equal(t, "https://www.firstview.com/files/big/S24/chanel/0017.jpg", got)
}

func TestTransformIdentifierBeforeDifference(t *testing.T) {
	tr := DeriveTransform("https://x/p/12345_s.jpg", "https://x/p/12345_l.jpg")
	assert.Equal(t, "https://x/p/12345_", tr.Prefix)

	got, ok := tr.Apply("https://x/p/12346_s.jpg")
	assert.True(t, ok)
	assert.Equal(t, "https://x/p/12346_l.jpg", got)

	_, ok = tr.Apply("https://x/q/12346_s.jpg")
	assert.False(t, ok, "other directories are not guessed")
	_, ok = tr.Apply("https://x/p/12346_m.jpg")
	assert.False(t, ok)
}

func TestTransformSuffixFallback(t *testing.T) {
	tr := DeriveTransform("http://h/t/1.jpg", "http://h/f/1.jpg")
	assert.Equal(t, 6, tr.SuffixLen)
	got, ok := tr.Apply("http://h/q/2.jpg")
	assert.True(t, ok)
	assert.Equal(t, "http://h/f/2.jpg", got)
}

func TestTransformIdentityAndForeign(t *testing.T) {
	same := DeriveTransform("http://h/x.jpg", "http://h/x.jpg")
	assert.True(t, same.Identity())
	got, ok := same.Apply("http://h/y.jpg")
	assert.True(t, ok)
	assert.Equal(t, "http://h/y.jpg", got)

	tr := DeriveTransform("http://h/t/1.jpg", "http://h/f/1.jpg")
	got, ok = tr.Apply("https://other/1.jpg")
	assert.False(t, ok)
	assert.Equal(t, "https://other/1.jpg", got)
}
