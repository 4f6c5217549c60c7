package query

import "testing"

func TestKeyStableUnderCoordinateJitter(t *testing.T) {
	base := Query{Lat: 52.52001, Lng: 13.40499, RadiusKm: 25, Filter: "Aves"}
	jittered := Query{Lat: 52.5200199, Lng: 13.4049901, RadiusKm: 25, Filter: "Aves"}
	if base.Key() != jittered.Key() {
		t.Fatalf("截断精度内的抖动不应产生不同键: %s vs %s", base.Key(), jittered.Key())
	}
}

func TestKeyDistinguishesFilter(t *testing.T) {
	a := Query{Lat: 1, Lng: 2, RadiusKm: 10, Filter: "Aves"}
	b := Query{Lat: 1, Lng: 2, RadiusKm: 10, Filter: "Insecta"}
	if a.Key() == b.Key() {
		t.Fatalf("不同过滤器必须产生不同键")
	}
}

func TestKeyNormalizesFilter(t *testing.T) {
	a := Query{Lat: 1, Lng: 2, RadiusKm: 10, Filter: " Aves "}
	b := Query{Lat: 1, Lng: 2, RadiusKm: 10, Filter: "aves"}
	if a.Key() != b.Key() {
		t.Fatalf("过滤器大小写/空白不应影响键")
	}
	empty := Query{Lat: 1, Lng: 2, RadiusKm: 10}
	if empty.Key() != "1.000,2.000,r10:all" {
		t.Fatalf("空过滤器应归一化为 all: %s", empty.Key())
	}
}

func TestSignatureOmitsFilter(t *testing.T) {
	a := Query{Lat: 48.8566, Lng: 2.3522, RadiusKm: 50, Filter: "Aves"}
	b := Query{Lat: 48.8566, Lng: 2.3522, RadiusKm: 50, Filter: "Fungi"}
	if a.Signature() != b.Signature() {
		t.Fatalf("签名不应包含过滤器成分")
	}
}

func TestTruncateNegativeCoordinates(t *testing.T) {
	q := Query{Lat: -33.86885, Lng: 151.20929, RadiusKm: 25}
	if q.Signature() != "-33.868,151.209,r25" {
		t.Fatalf("负坐标截断结果不符: %s", q.Signature())
	}
}

func TestKeyStableAcrossZeroMeridian(t *testing.T) {
	// 截断后同归于 0 的抖动不应因 -0 分裂成 "-0.000" 与 "0.000" 两个键。
	south := Query{Lat: -0.0004, Lng: 0.0004, RadiusKm: 25, Filter: "Aves"}
	north := Query{Lat: 0.0004, Lng: -0.0004, RadiusKm: 25, Filter: "Aves"}
	if south.Key() != north.Key() {
		t.Fatalf("赤道/本初子午线两侧的抖动不应产生不同键: %s vs %s", south.Key(), north.Key())
	}
	if south.Signature() != "0.000,0.000,r25" {
		t.Fatalf("签名不应出现负零: %s", south.Signature())
	}
}
