package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

const stageDescription = "Record stage: requirement, design-output, design-verification or design-validation"

var addToolDef = mcp.NewTool("stage_add",
	mcp.WithDescription("Add a design-control record. The internal_id is assigned and returned. "+
		"All required fields of the stage must be given: title and description always, "+
		"requirement for design-output and design-validation, design_output for design-verification."),
	mcp.WithString("stage", mcp.Required(), mcp.Description(stageDescription)),
	mcp.WithObject("fields", mcp.Required(), mcp.Description("Field name to value, e.g. {\"title\": \"...\", \"description\": \"...\"}")),
)

var showToolDef = mcp.NewTool("stage_show",
	mcp.WithDescription("Show one record by stage and internal_id."),
	mcp.WithString("stage", mcp.Required(), mcp.Description(stageDescription)),
	mcp.WithNumber("id", mcp.Required(), mcp.Description("Internal ID within the stage")),
)

var listToolDef = mcp.NewTool("stage_list",
	mcp.WithDescription("List records ordered by stage then internal_id."),
	mcp.WithString("stage", mcp.Description("Only list this stage")),
	mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Records to skip")),
)

var updateToolDef = mcp.NewTool("stage_update",
	mcp.WithDescription("Change fields of a record. Returns the record and the changed fields "+
		"with their old (self) and new (other) values. The record must still be complete."),
	mcp.WithString("stage", mcp.Required(), mcp.Description(stageDescription)),
	mcp.WithNumber("id", mcp.Required(), mcp.Description("Internal ID within the stage")),
	mcp.WithObject("set", mcp.Description("Field name to new value; null unsets the field")),
	mcp.WithArray("unset", mcp.Description("Field names to unset"), mcp.WithStringItems()),
)

var deleteToolDef = mcp.NewTool("stage_delete",
	mcp.WithDescription("Permanently delete a record."),
	mcp.WithString("stage", mcp.Required(), mcp.Description(stageDescription)),
	mcp.WithNumber("id", mcp.Required(), mcp.Description("Internal ID within the stage")),
)

var checkToolDef = mcp.NewTool("stage_check",
	mcp.WithDescription("Check that every record has its required fields. With remote=true, "+
		"also compare linked records with their issues."),
	mcp.WithString("stage", mcp.Description("Only check this stage")),
	mcp.WithBoolean("remote", mcp.Description("Compare linked records with the issue tracker")),
)

var diffToolDef = mcp.NewTool("stage_diff",
	mcp.WithDescription("Compare a stored record (self) with exactly one other side (other): "+
		"another stored record, a serialized record, or its linked issue."),
	mcp.WithString("stage", mcp.Required(), mcp.Description(stageDescription)),
	mcp.WithNumber("id", mcp.Required(), mcp.Description("Internal ID within the stage")),
	mcp.WithString("other_stage", mcp.Description("Stage of the other stored record")),
	mcp.WithNumber("other_id", mcp.Description("Internal ID of the other stored record")),
	mcp.WithString("other_json", mcp.Description("Serialized record to compare against")),
	mcp.WithBoolean("remote", mcp.Description("Compare against the linked issue")),
)
