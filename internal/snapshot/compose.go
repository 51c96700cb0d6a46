package snapshot

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/alessio/shellescape"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/tidwall/gjson"

	"github.com/loykin/servctl/internal/service"
	"github.com/loykin/servctl/internal/shell"
)

// Label keys read from containers and images.
const (
	LabelComposeService = "com.docker.compose.service"
	LabelOCIVersion     = "org.opencontainers.image.version"
	LabelSchemaVersion  = "org.label-schema.version"
	LabelOCIRevision    = "org.opencontainers.image.revision"
)

func (e *Engine) compose(ctx context.Context, sc shell.Context) *Inspection {
	ps := e.Runner.Capture(ctx, sc, "docker compose ps -q")
	if !ps.OK() {
		return failed(service.ContainerCompose, orDefault(firstNonEmpty(ps.Stderr, ps.Stdout), "docker compose ps -q failed"))
	}

	var ids []string
	for _, line := range strings.Split(ps.Stdout, "\n") {
		if id := strings.TrimSpace(line); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return &Inspection{Mode: service.ContainerCompose, OK: true, Components: map[string]Component{}}
	}

	insp := e.Runner.Capture(ctx, sc, "docker inspect "+shellescape.QuoteCommand(ids))
	if !insp.OK() {
		return failed(service.ContainerCompose, orDefault(firstNonEmpty(insp.Stderr, insp.Stdout), "docker inspect failed"))
	}
	containers, ok := decodeArray(insp.Stdout)
	if !ok {
		e.Log.Debug("docker inspect output is not a JSON array, treating as empty")
	}

	images := e.images(ctx, sc, containers)

	components := make(map[string]Component, len(containers))
	for _, c := range containers {
		labels := c.Get("Config.Labels").Map()
		containerName := strings.TrimPrefix(c.Get("Name").String(), "/")
		compName := strings.TrimSpace(labels[LabelComposeService].String())
		if compName == "" {
			compName = containerName
		}
		if compName == "" {
			compName = "unknown"
		}

		comp := Component{
			Container: containerName,
			ImageRef:  strings.TrimSpace(c.Get("Config.Image").String()),
			ImageID:   strings.TrimSpace(c.Get("Image").String()),
		}
		if img, ok := images[comp.ImageID]; ok {
			imgLabels := img.Get("Config.Labels").Map()
			comp.Version = firstNonEmpty(imgLabels[LabelOCIVersion].String(), imgLabels[LabelSchemaVersion].String())
			comp.Revision = strings.TrimSpace(imgLabels[LabelOCIRevision].String())
			comp.Digest = repoDigest(img.Get("RepoDigests"))
		}
		comp.Repository, comp.Tag = parseImageRef(comp.ImageRef)
		components[compName] = comp
	}
	return &Inspection{Mode: service.ContainerCompose, OK: true, Components: components}
}

// images inspects every distinct image of containers in one call and indexes
// the metadata by image ID. Failures yield an empty index.
func (e *Engine) images(ctx context.Context, sc shell.Context, containers []gjson.Result) map[string]gjson.Result {
	seen := map[string]bool{}
	var ids []string
	for _, c := range containers {
		id := strings.TrimSpace(c.Get("Image").String())
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	index := make(map[string]gjson.Result, len(ids))
	if len(ids) == 0 {
		return index
	}
	sort.Strings(ids)

	res := e.Runner.Capture(ctx, sc, "docker image inspect "+shellescape.QuoteCommand(ids))
	if !res.OK() {
		e.Log.Debug("docker image inspect failed", slog.Int("exit", res.ExitCode), slog.String("stderr", strings.TrimSpace(res.Stderr)))
		return index
	}
	imgs, ok := decodeArray(res.Stdout)
	if !ok {
		e.Log.Debug("docker image inspect output is not a JSON array, treating as empty")
	}
	for _, img := range imgs {
		if id := strings.TrimSpace(img.Get("Id").String()); id != "" {
			index[id] = img
		}
	}
	return index
}

// decodeArray parses text as a JSON array. ok is false when text is not valid
// JSON or not an array; the returned slice is then empty, never nil-vs-empty
// ambiguous for callers that only range over it.
func decodeArray(text string) ([]gjson.Result, bool) {
	if !gjson.Valid(text) {
		return []gjson.Result{}, false
	}
	r := gjson.Parse(text)
	if !r.IsArray() {
		return []gjson.Result{}, false
	}
	return r.Array(), true
}

// repoDigest returns the part after "@" of the first repository digest.
func repoDigest(digests gjson.Result) string {
	if !digests.IsArray() {
		return ""
	}
	arr := digests.Array()
	if len(arr) == 0 {
		return ""
	}
	first := arr[0].String()
	if _, after, ok := strings.Cut(first, "@"); ok {
		return after
	}
	return first
}

// parseImageRef splits an image reference into repository and tag. Both are
// empty when ref does not parse; digest references have no tag.
func parseImageRef(ref string) (string, string) {
	if ref == "" {
		return "", ""
	}
	r, err := name.ParseReference(ref, name.WeakValidation)
	if err != nil {
		return "", ""
	}
	switch v := r.(type) {
	case name.Tag:
		return v.Context().Name(), v.TagStr()
	case name.Digest:
		return v.Context().Name(), ""
	}
	return r.Context().Name(), ""
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
