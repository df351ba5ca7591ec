package mcp

import "github.com/mark3labs/mcp-go/mcp"

// formOptions describes the manifestation form shared by the form tools.
func formOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("kind",
			mcp.Description("Manifestation type. Default: reclamacao"),
			mcp.Enum("reclamacao", "denuncia", "sugestao", "elogio"),
		),
		mcp.WithString("subject", mcp.Description("Short subject, at least 3 characters")),
		mcp.WithString("descriptionText", mcp.Description("Written account, at least 10 characters unless an audio file is attached")),
		mcp.WithString("audioTranscript", mcp.Description("Transcript or summary of the audio. Required with audio_path")),
		mcp.WithString("imageAlt", mcp.Description("Alternative text for the image. Required with image_path")),
		mcp.WithString("videoDescription", mcp.Description("Caption or description of the video. Required with video_path")),
		mcp.WithBoolean("anonymous", mcp.Description("Submit without identification")),
		mcp.WithString("audio_path", mcp.Description("Path to an audio file to attach")),
		mcp.WithString("image_path", mcp.Description("Path to an image file to attach")),
		mcp.WithString("video_path", mcp.Description("Path to a video file to attach")),
	}
}

func formTool(name, description string) mcp.Tool {
	opts := append([]mcp.ToolOption{mcp.WithDescription(description)}, formOptions()...)
	return mcp.NewTool(name, opts...)
}

var validateToolDef = formTool("manifestation_validate",
	"Walk the intake wizard over a manifestation. Returns the furthest step reached, the field to fix and every field error.")

var reviewToolDef = formTool("manifestation_review",
	"Render the review summary shown before submission, as Markdown and HTML, with any remaining field errors.")

var submitToolDef = formTool("manifestation_submit",
	"Validate and submit a manifestation to the ombudsman service. Returns the tracking protocol. The stored draft is cleared on success and kept on failure.")

var trackToolDef = mcp.NewTool("manifestation_track",
	mcp.WithDescription("Look up the status of a submitted manifestation by protocol."),
	mcp.WithString("protocol", mcp.Required(), mcp.Description("Protocol returned on submission, e.g. DF-2026-123456")),
)

var draftLoadToolDef = mcp.NewTool("draft_load",
	mcp.WithDescription("Load the saved draft, if any. Drafts hold text fields only, never attachments."),
)

var draftSaveToolDef = formTool("draft_save",
	"Save the text fields of a manifestation as the draft, replacing the previous one. Attachment paths are ignored.")

var draftClearToolDef = mcp.NewTool("draft_clear",
	mcp.WithDescription("Discard the saved draft. Succeeds when there is none."),
)
