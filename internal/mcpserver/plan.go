// Copyright 2025 James Ross
package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

const planTemplate = `Requirements: %s

## Planning
Think through the project before any code is written.
**Parallel and small tasks** Split the work into tasks with no dependencies
on each other; keep each task small and limited to one file.
**Readme and tasks** Create a readme describing the project and the task
breakdown, and pass it to the coding tools as a readonly file.
**Coding tools** Use code_with_multiple_ai for independent tasks (at most 4
at a time) and code_with_ai for a single file.
**Task branches** Group tasks into branches that touch disjoint parts of the
app, then run one task from each branch per round.
**Sprints** Develop step by step: every sprint ends with a runnable app, even
if the first sprint only boots an empty shell.
**Interfaces** Give each task the method names, inputs and outputs it must
expose so independently-built pieces connect cleanly.
**Division of labor** The coding tools only edit files; run commands
yourself, and route every code change through the coding tools rather than
editing directly.
**Docs first** If the repository has a docs directory or readme, read it
before planning.`

const planFromScratchTemplate = `Requirements: %s

## Preparation
Before planning, research the required technologies and dependencies and
save your findings under a docs directory; read them back before you start.
If the requirements reference an existing repository, clone it into docs and
study it first.

` + `## Planning
Think through the project before any code is written.
**Parallel and small tasks** Split the work into tasks with no dependencies
on each other; keep each task small and limited to one file.
**Readme and tasks** Create a readme describing the project and the task
breakdown, and pass it to the coding tools as a readonly file.
**Coding tools** Use code_with_multiple_ai for independent tasks (at most 4
at a time) and code_with_ai for a single file.
**Task branches** Group tasks into branches that touch disjoint parts of the
app, then run one task from each branch per round.
**Sprints** Develop step by step: every sprint ends with a runnable app.
**Interfaces** Give each task the method names, inputs and outputs it must
expose so independently-built pieces connect cleanly.
**Division of labor** The coding tools only edit files; run commands
yourself, and route every code change through the coding tools rather than
editing directly.`

func (s *Server) handlePlan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt := stringArg(getArgs(request), "prompt", "")
	return newTextResult(fmt.Sprintf(planTemplate, prompt)), nil
}

func (s *Server) handlePlanFromScratch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt := stringArg(getArgs(request), "prompt", "")
	return newTextResult(fmt.Sprintf(planFromScratchTemplate, prompt)), nil
}
