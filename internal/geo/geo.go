package geo

import "math"

// EarthRadiusKM 地球平均半径（公里）
const EarthRadiusKM = 6371.0

// Point 经纬度坐标
type Point struct {
	Lat float64
	Lng float64
}

// Valid 坐标是否落在合法范围内
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// HaversineKM 计算两点之间的大圆距离（公里）
func HaversineKM(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusKM * math.Asin(math.Min(1, math.Sqrt(h)))
}

// PointFromPtr 由可空经纬度构造坐标，任一为空时返回 false
func PointFromPtr(lat, lng *float64) (Point, bool) {
	if lat == nil || lng == nil {
		return Point{}, false
	}
	p := Point{Lat: *lat, Lng: *lng}
	return p, p.Valid()
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
