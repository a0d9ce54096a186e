package geometry

import "image"

// Centroid returns the centroid of a closed contour from its polygon
// moments, truncated to whole pixels. Degenerate contours (zero area)
// report false.
func Centroid(contour []image.Point) (image.Point, bool) {
	n := len(contour)
	if n < 3 {
		return image.Point{}, false
	}
	var m00, m10, m01 float64
	for i := 0; i < n; i++ {
		p := contour[i]
		q := contour[(i+1)%n]
		cross := float64(p.X*q.Y - q.X*p.Y)
		m00 += cross
		m10 += cross * float64(p.X+q.X)
		m01 += cross * float64(p.Y+q.Y)
	}
	if m00 == 0 {
		return image.Point{}, false
	}
	// m00 is twice the signed area.
	return image.Pt(int(m10/(3*m00)), int(m01/(3*m00))), true
}
