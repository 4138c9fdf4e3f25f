// Package assets embeds the dashboard page sources. The server minifies
// and assembles them into the final index.html at startup.
package assets

import _ "embed"

//go:embed index.html.tpl
var IndexTpl []byte

//go:embed style.css
var StyleCSS []byte

//go:embed script.js
var ScriptJS []byte
