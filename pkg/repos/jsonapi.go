package repos

import (
	"context"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/zeptofine/blrs-cli/pkg/build"
)

// JSONAPIFetcher reads the official builder JSON API: a top-level array
// of build objects with version/branch/hash/platform fields.
type JSONAPIFetcher struct {
	client *retryablehttp.Client
}

func NewJSONAPIFetcher() *JSONAPIFetcher {
	return &JSONAPIFetcher{client: newRetryClient()}
}

func (f *JSONAPIFetcher) Kind() Kind { return KindOfficialJSON }

func (f *JSONAPIFetcher) Fetch(ctx context.Context, repo RepoConfig) ([]build.Record, error) {
	body, err := getBody(ctx, f.client, repo, repo.URL)
	if err != nil {
		return nil, err
	}
	return ParseBuilderJSON(repo.ID, body), nil
}

// ParseBuilderJSON converts a builder API payload into records. Entries
// without a version or hash are skipped; the endpoint lists pending
// uploads with those fields empty.
func ParseBuilderJSON(repoID string, body []byte) []build.Record {
	var out []build.Record
	for _, item := range gjson.ParseBytes(body).Array() {
		ver, err := build.ParseVersion(item.Get("version").String())
		if err != nil {
			continue
		}
		hash := item.Get("hash").String()
		if hash == "" {
			hash = item.Get("build_hash").String()
		}
		if hash == "" {
			continue
		}

		commit := item.Get("commit_time").Int()
		if commit == 0 {
			commit = item.Get("file_mtime").Int()
		}

		out = append(out, build.Record{
			Repo:        repoID,
			Version:     ver,
			Branch:      item.Get("branch").String(),
			Hash:        hash,
			CommitTime:  time.Unix(commit, 0).UTC(),
			Platform:    build.NormalizePlatform(item.Get("platform").String()),
			Arch:        build.NormalizeArch(item.Get("architecture").String()),
			DownloadURL: item.Get("url").String(),
			Checksum:    item.Get("checksum").String(),
		})
	}
	return out
}
