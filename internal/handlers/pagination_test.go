package handlers

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReplaceQuery(t *testing.T) {
	q := url.Values{"category": {"abc"}, "page": {"2"}}
	assert.Equal(t, "category=abc&page=3", replaceQuery(q, "page", "3"))
	assert.Equal(t, "page=2", replaceQuery(url.Values{"page": {"1", "2"}}, "page", "2"))
	assert.Equal(t, "page=1", replaceQuery(nil, "page", "1"))

	// исходные параметры не меняются
	assert.Equal(t, "2", q.Get("page"))
}
