//go:build integration

package integration

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync/atomic"
	"time"
)

var userSeq atomic.Int64

// TestUser generates unique test account credentials
func TestUser(suffix string) (email, username, password string) {
	n := userSeq.Add(1)
	ts := time.Now().Unix()
	email = fmt.Sprintf("test-%d-%d-%s@example.com", ts, n, suffix)
	username = fmt.Sprintf("user%d_%s", n, suffix)
	password = "Correct-Horse-Battery-9"
	return
}

var linkPattern = regexp.MustCompile(`https?://\S+`)

// ExtractLink returns the first URL in an email body
func ExtractLink(body string) string {
	return linkPattern.FindString(body)
}

// LinkPath returns the path of an emailed link, ready to replay against a test server
func LinkPath(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return ""
	}
	return u.Path
}
