package sast

import (
	"regexp"
	"strings"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	"github.com/khanhnv2901/seca-assert/internal/infrastructure/lang"
)

const sourceDockerfile = "Dockerfile/Instructions"

var (
	userPattern = regexp.MustCompile(`(?i)^[ \t]*USER\s+(\S+)`)
	fromPattern = regexp.MustCompile(`(?i)^[ \t]*FROM\s+(?:--platform=\S+\s+)?(\S+)(?:\s+AS\s+(\S+))?`)
)

// nonRootUser matches the last USER instruction when it names a non-root
// user. No match means the image runs as root.
func nonRootUser(code string) []int {
	last, user := 0, ""
	for i, line := range strings.Split(code, "\n") {
		if m := userPattern.FindStringSubmatch(line); m != nil {
			last, user = i+1, m[1]
		}
	}
	name, _, _ := strings.Cut(user, ":")
	if last == 0 || name == "root" || name == "0" {
		return nil
	}
	return []int{last}
}

// unpinnedBase matches FROM lines whose image has no tag or uses latest.
// Build stages, scratch, digests and ARG-substituted images are skipped.
func unpinnedBase(code string) []int {
	stages := map[string]bool{"scratch": true}
	var lines []int
	for i, line := range strings.Split(code, "\n") {
		m := fromPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		image := strings.ToLower(m[1])
		if m[2] != "" {
			stages[strings.ToLower(m[2])] = true
		}
		if stages[image] || strings.Contains(image, "@") || strings.Contains(image, "$") {
			continue
		}
		name := image[strings.LastIndex(image, "/")+1:]
		_, tag, tagged := strings.Cut(name, ":")
		if !tagged || tag == "latest" {
			lines = append(lines, i+1)
		}
	}
	return lines
}

// DockerfileRunsAsRoot flags images whose final user is root.
var DockerfileRunsAsRoot = absentCheck(assert.Meta{
	Name:        "lang.dockerfile.runs_as_root",
	Description: "OPEN when the image does not switch to a non-root USER.",
	Risk:        check.RiskMedium,
}, lang.Dockerfile, lang.GrammarFunc(nonRootUser), lang.Messages{
	Open:   "Image runs as root",
	Closed: "Image runs as a non-root user",
	Source: sourceDockerfile,
})

// DockerfileUsesAddInsteadOfCopy flags ADD for anything but local archives.
var DockerfileUsesAddInsteadOfCopy = grammarCheck(assert.Meta{
	Name:        "lang.dockerfile.uses_add_instead_of_copy",
	Description: "OPEN when ADD is used where COPY would do.",
	Risk:        check.RiskLow,
}, lang.Dockerfile, lang.Except(
	lang.Regexp(`(?i)^[ \t]*ADD\s`),
	lang.Regexp(`(?i)^[ \t]*ADD\s+(?:--\S+\s+)*[^\s:]+\.(?:tar|tar\.gz|tgz|tar\.bz2|tar\.xz)\s`),
), lang.Messages{
	Open:   "Dockerfile uses ADD instead of COPY",
	Closed: "Dockerfile does not use ADD instead of COPY",
	Source: sourceDockerfile,
})

// DockerfileUsesLatestTag flags base images that are not pinned.
var DockerfileUsesLatestTag = grammarCheck(assert.Meta{
	Name:        "lang.dockerfile.uses_latest_tag",
	Description: "OPEN when a base image is untagged or tagged latest.",
	Risk:        check.RiskLow,
}, lang.Dockerfile, lang.GrammarFunc(unpinnedBase), lang.Messages{
	Open:   "Dockerfile uses unpinned base images",
	Closed: "Dockerfile pins its base images",
	Source: sourceDockerfile,
})
