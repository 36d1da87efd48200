// Copyright 2025 James Ross
package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tsSample = `import React from 'react'
import { fetchUser, saveUser } from './api'

export interface UserProps {
  id: string
  name: string
}

export type UserID = string

export function renderUser(props: UserProps) {
  const user = fetchUser(props.id)
  return format(user)
}

export const format = (user) => {
  return user.name.toUpperCase()
}

class UserCard extends Component {
  render() {
    return renderUser(this.props)
  }
}
`

func TestParseJSTSElements(t *testing.T) {
	blocks, err := ParseJSTS(tsSample)
	require.NoError(t, err)

	render := blockByName(t, blocks, "renderUser", Function)
	assert.Equal(t, 11, render.StartLine)
	assert.Equal(t, 14, render.EndLine)
	assert.True(t, render.Dependencies["fetchUser"])
	assert.True(t, render.Dependencies["format"])

	format := blockByName(t, blocks, "format", Function) // exported arrow
	assert.Equal(t, 16, format.StartLine)

	card := blockByName(t, blocks, "UserCard", Class)
	assert.Equal(t, 20, card.StartLine)
	assert.Equal(t, 24, card.EndLine)

	props := blockByName(t, blocks, "UserProps", Interface)
	assert.Equal(t, 4, props.StartLine)
	assert.Equal(t, 7, props.EndLine)

	uid := blockByName(t, blocks, "UserID", TypeAlias)
	assert.Equal(t, 9, uid.StartLine)
}

func TestParseJSTSImports(t *testing.T) {
	blocks, err := ParseJSTS(tsSample)
	require.NoError(t, err)

	var imports []Block
	for _, b := range blocks {
		if b.Type == Import {
			imports = append(imports, b)
		}
	}
	require.Len(t, imports, 2)
	assert.True(t, imports[0].Dependencies["React"])
	assert.True(t, imports[0].Dependencies["react"])
	assert.True(t, imports[1].Dependencies["fetchUser"])
	assert.True(t, imports[1].Dependencies["saveUser"])
}

func TestBraceEndFallback(t *testing.T) {
	// unbalanced braces: end defaults to min(start+10, eof)
	src := "function broken() {\n" + strings.Repeat("  call()\n", 30)
	blocks, err := ParseJSTS(src)
	require.NoError(t, err)
	broken := blockByName(t, blocks, "broken", Function)
	assert.Equal(t, 11, broken.EndLine)

	short := "function alsoBroken() {\n  x()\n"
	blocks, err = ParseJSTS(short)
	require.NoError(t, err)
	b := blockByName(t, blocks, "alsoBroken", Function)
	assert.Equal(t, 3, b.EndLine)
}
