// Package shaders provides embedded GLSL shader sources.
package shaders

import _ "embed"

// WorldVertexShader is the vertex shader for world tri-patches.
//
//go:embed world.vert
var WorldVertexShader string

// WorldFragmentShader modulates the material colour by the lightmap.
//
//go:embed world.frag
var WorldFragmentShader string

// PropVertexShader is the vertex shader for prop boxes.
//
//go:embed prop.vert
var PropVertexShader string

// PropFragmentShader is the fragment shader for prop boxes.
//
//go:embed prop.frag
var PropFragmentShader string
