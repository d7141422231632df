package attachment

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/dustin/go-humanize"
)

var previewTmpl = template.Must(template.New("preview").Parse(`
{{- define "image" }}<img class="attachment-image" src="{{.Src}}" alt="{{.Name}}">{{ end -}}
{{- define "video" }}<video class="attachment-video" src="{{.Src}}" controls></video>{{ end -}}
{{- define "audio" }}<audio class="attachment-audio" src="{{.Src}}" controls></audio>{{ end -}}
{{- define "document" }}<a class="attachment-document" href="{{.Src}}" download="{{.Name}}">{{.Name}}</a>{{ end -}}
`))

// RenderHTML produces the inline preview for a: an image, a playable video or audio
// control, or a download link. src is where the browser can fetch the blob.
func RenderHTML(a *Attachment, src string) template.HTML {
	if a == nil {
		return ""
	}
	name := "document"
	switch a.Category {
	case Image:
		name = "image"
	case Video:
		name = "video"
	case Audio:
		name = "audio"
	}

	var buf bytes.Buffer
	err := previewTmpl.ExecuteTemplate(&buf, name, struct {
		Src  template.URL
		Name string
	}{Src: template.URL(src), Name: a.Name})
	if err != nil {
		return template.HTML(template.HTMLEscapeString(a.Name))
	}
	return template.HTML(buf.String())
}

// RenderText is the one-line label used by the terminal front-ends.
func RenderText(a *Attachment) string {
	if a == nil {
		return ""
	}
	icon := map[Category]string{
		Image:    "[image]",
		Video:    "[video]",
		Audio:    "[audio]",
		Document: "[document]",
	}[a.Category]
	if icon == "" {
		icon = "[file]"
	}
	return fmt.Sprintf("%s %s (%s, %s)", icon, a.Name, a.MIMEType, humanize.Bytes(uint64(a.Size())))
}
