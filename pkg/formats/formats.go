// Package formats provides parsers for Valve Source engine file formats:
// the BSP map container with its lumps, static prop game lumps, the
// entity lump and KeyValues-based VMT materials.
package formats
