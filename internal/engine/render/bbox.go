package render

// propHalfExtent is the half size of the box drawn in place of a prop model.
const propHalfExtent = 16

// boxLineVertexCount is the number of vertices of a wireframe box (12 edges x 2).
const boxLineVertexCount = 24

// boxLines returns the line vertices of a wireframe box, [x, y, z] per vertex.
func boxLines(minX, minY, minZ, maxX, maxY, maxZ float32) []float32 {
	return []float32{
		// Bottom (z = min)
		minX, minY, minZ, maxX, minY, minZ,
		maxX, minY, minZ, maxX, maxY, minZ,
		maxX, maxY, minZ, minX, maxY, minZ,
		minX, maxY, minZ, minX, minY, minZ,
		// Top (z = max)
		minX, minY, maxZ, maxX, minY, maxZ,
		maxX, minY, maxZ, maxX, maxY, maxZ,
		maxX, maxY, maxZ, minX, maxY, maxZ,
		minX, maxY, maxZ, minX, minY, maxZ,
		// Verticals
		minX, minY, minZ, minX, minY, maxZ,
		maxX, minY, minZ, maxX, minY, maxZ,
		maxX, maxY, minZ, maxX, maxY, maxZ,
		minX, maxY, minZ, minX, maxY, maxZ,
	}
}

// propBox returns the model-space box drawn for every prop.
func propBox() []float32 {
	const e = propHalfExtent
	return boxLines(-e, -e, 0, e, e, 2*e)
}
