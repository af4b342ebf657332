package repos

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/html"

	"github.com/zeptofine/blrs-cli/pkg/build"
)

// HTMLIndexFetcher scrapes a plain directory-index page (nginx/apache
// autoindex style) for build archives named like
//
//	blender-4.3.0-alpha+main.ab12cd34ef56-linux.x86_64-release.tar.xz
//
// The modification time column next to each link, when present, becomes
// the record's commit time.
type HTMLIndexFetcher struct {
	client *retryablehttp.Client
}

func NewHTMLIndexFetcher() *HTMLIndexFetcher {
	return &HTMLIndexFetcher{client: newRetryClient()}
}

func (f *HTMLIndexFetcher) Kind() Kind { return KindHTMLIndex }

func (f *HTMLIndexFetcher) Fetch(ctx context.Context, repo RepoConfig) ([]build.Record, error) {
	body, err := getBody(ctx, f.client, repo, repo.URL)
	if err != nil {
		return nil, err
	}
	records, err := ParseHTMLIndex(repo.ID, repo.URL, body)
	if err != nil {
		return nil, &FetchError{Repo: repo.Name(), URL: repo.URL, Err: err}
	}
	return records, nil
}

var archiveNameRe = regexp.MustCompile(
	`^blender-(\d+\.\d+\.\d+)-[a-z]+\+([A-Za-z0-9_.-]+?)\.([0-9a-f]{6,})-([a-z]+)\.([A-Za-z0-9_]+)-release\.(tar\.xz|zip|dmg)$`)

// autoindexTimeRe matches the "02-Jan-2006 15:04" column nginx emits.
var autoindexTimeRe = regexp.MustCompile(`\d{2}-[A-Z][a-z]{2}-\d{4} \d{2}:\d{2}`)

// ParseHTMLIndex extracts build records from a directory listing page.
// Links that do not look like build archives are ignored.
func ParseHTMLIndex(repoID, baseURL string, body []byte) ([]build.Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	base, _ := url.Parse(baseURL)

	var out []build.Record
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		name := href
		if i := strings.LastIndexByte(name, '/'); i >= 0 {
			name = name[i+1:]
		}
		m := archiveNameRe.FindStringSubmatch(name)
		if m == nil {
			return
		}
		ver, err := build.ParseVersion(m[1])
		if err != nil {
			return
		}

		link := href
		if base != nil {
			if u, err := url.Parse(href); err == nil {
				link = base.ResolveReference(u).String()
			}
		}

		out = append(out, build.Record{
			Repo:        repoID,
			Version:     ver,
			Branch:      m[2],
			Hash:        m[3],
			CommitTime:  listingTime(s),
			Platform:    build.NormalizePlatform(m[4]),
			Arch:        build.NormalizeArch(m[5]),
			DownloadURL: link,
		})
	})
	return out, nil
}

// listingTime pulls the modification time out of the text following the
// link, which is where autoindex pages put it. Zero when absent.
func listingTime(s *goquery.Selection) time.Time {
	for _, n := range s.Nodes {
		for sib := n.NextSibling; sib != nil; sib = sib.NextSibling {
			if sib.Type != html.TextNode {
				break
			}
			if m := autoindexTimeRe.FindString(sib.Data); m != "" {
				if t, err := time.Parse("02-Jan-2006 15:04", m); err == nil {
					return t.UTC()
				}
			}
		}
	}
	return time.Time{}
}
