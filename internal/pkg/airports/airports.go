// Package airports resolves ICAO codes to coordinates.
package airports

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2/log"
)

// Toronto downtown is used when a code is unknown.
const (
	DefaultLat = 43.6532
	DefaultLon = -79.3832

	earthRadiusMi = 3958.8
)

type Coords struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

var known = map[string]Coords{
	// Canada
	"CYYZ": {43.6772, -79.6306},
	"CYTZ": {43.6278, -79.3961},
	"CYHM": {43.1736, -79.9350},
	"CYKF": {43.4608, -80.3786},
	"CYOO": {43.9228, -78.8950},
	"CYOW": {45.3225, -75.6692},
	"CYUL": {45.4706, -73.7408},
	"CYQB": {46.7911, -71.3933},
	"CYHZ": {44.8808, -63.5086},
	"CYFC": {45.8789, -66.5372},
	"CYJT": {48.5442, -58.5500},
	"CYWG": {49.9100, -97.2399},
	"CYQR": {50.4320, -104.6658},
	"CYXE": {52.1708, -106.6994},
	"CYYC": {51.1139, -114.0201},
	"CYEG": {53.3097, -113.5797},
	"CYED": {53.6753, -113.4644},
	"CYVR": {49.1939, -123.1844},
	"CYYJ": {48.6469, -123.4258},
	"CYCD": {49.0547, -123.8697},
	"CYXX": {49.0256, -122.3611},
	"CYXS": {53.8894, -122.6797},
	"CYWL": {52.1833, -122.0542},
	"CYZF": {62.4628, -114.4403},
	"CYEV": {68.3042, -133.4831},
	"CYVQ": {65.2816, -126.7982},
	"CYSM": {59.1833, -105.8417},
	"CYVK": {50.1442, -110.7428},
	// US hubs
	"KATL": {33.6407, -84.4277},
	"KORD": {41.9742, -87.9073},
	"KLAX": {33.9425, -118.4081},
	"KDFW": {32.8998, -97.0403},
	"KDEN": {39.8561, -104.6737},
	"KJFK": {40.6398, -73.7789},
	"KLGA": {40.7772, -73.8726},
	"KEWR": {40.6925, -74.1687},
	"KSFO": {37.6190, -122.3750},
	"KSEA": {47.4502, -122.3088},
	"KMIA": {25.7959, -80.2870},
	"KLAS": {36.0840, -115.1537},
	"KPHX": {33.4342, -112.0116},
	"KIAH": {29.9902, -95.3368},
	"KHOU": {29.6454, -95.2789},
	"KMSP": {44.8848, -93.2223},
	"KBOS": {42.3656, -71.0096},
	"KDTW": {42.2124, -83.3534},
	"KPHL": {39.8719, -75.2411},
	"KFLL": {26.0726, -80.1527},
	"KMCO": {28.4294, -81.3089},
	"KBWI": {39.1754, -76.6682},
	"KIAD": {38.9531, -77.4565},
	"KDCA": {38.8521, -77.0377},
	"KSLC": {40.7884, -111.9778},
	"KPDX": {45.5887, -122.5975},
	"KSAN": {32.7336, -117.1897},
	"KTPA": {27.9755, -82.5332},
	"KSTL": {38.7487, -90.3700},
	"KCLE": {41.4117, -81.8498},
	"KPIT": {40.4915, -80.2329},
	"KCVG": {39.0488, -84.6678},
	"KIND": {39.7173, -86.2944},
	"KCMH": {39.9980, -82.8919},
	"KMEM": {35.0424, -89.9767},
	"KSAT": {29.5337, -98.4698},
	"KAUS": {30.1975, -97.6664},
	"KDAL": {32.8471, -96.8517},
	"KSJC": {37.3626, -121.9290},
	"KOAK": {37.7213, -122.2208},
	"KSMF": {38.6954, -121.5908},
	"KRIC": {37.5052, -77.3197},
	"KORF": {36.8976, -76.0122},
	"KMKE": {42.9472, -87.8966},
	"KABQ": {35.0402, -106.6090},
	// US general aviation
	"KVNY": {34.2098, -118.4900},
	"KPAO": {37.4611, -122.1150},
	"KHWD": {37.6589, -122.1217},
	"KCCR": {38.0085, -122.0557},
	"KSQL": {37.5119, -122.2500},
	"KFDK": {39.4176, -77.3743},
	"KGAI": {39.1683, -77.1660},
	"KFTW": {32.8199, -97.3623},
	"KAFW": {32.9876, -97.3188},
	"KEFD": {29.6073, -95.1588},
	"KDSM": {41.5340, -93.6631},
	"KMSN": {43.1399, -89.3375},
	"KLGB": {33.8177, -118.1517},
	"KTOA": {33.8033, -118.3395},
	"KPSP": {33.8297, -116.5067},
	"KTRK": {39.3196, -120.1396},
	"KFUL": {33.8720, -117.9799},
	"KWJF": {34.7411, -118.2193},
	// Alaska and Hawaii
	"PANC": {61.1744, -149.9961},
	"PAFA": {64.8154, -147.8561},
	"PAJN": {58.3550, -134.5763},
	"PHNL": {21.3187, -157.9221},
	"PHOG": {20.8986, -156.4305},
	"PHKO": {19.7388, -156.0456},
}

var (
	mu     sync.RWMutex
	extras = map[string]Coords{}
)

// Lookup returns the airport coordinates. Unknown codes yield the Toronto
// default with found set to false.
func Lookup(icao string) (Coords, bool) {
	key := strings.ToUpper(strings.TrimSpace(icao))
	if c, ok := known[key]; ok {
		return c, true
	}
	mu.RLock()
	c, ok := extras[key]
	mu.RUnlock()
	if ok {
		return c, true
	}
	return Coords{Lat: DefaultLat, Lon: DefaultLon}, false
}

// Count returns the number of indexed airports.
func Count() int {
	mu.RLock()
	defer mu.RUnlock()
	n := len(known)
	for k := range extras {
		if _, dup := known[k]; !dup {
			n++
		}
	}
	return n
}

// LoadCSVFile merges a CSV file into the index. A missing file is not an error.
func LoadCSVFile(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warnf("[Airports] CSV %s not found, using built-in table", path)
			return nil
		}
		return err
	}
	defer f.Close()

	n, err := LoadCSV(f)
	if err != nil {
		return fmt.Errorf("load airports from %s: %w", path, err)
	}
	log.Infof("[Airports] loaded %d airports from %s, %d indexed", n, path, Count())
	return nil
}

// LoadCSV reads either `icao,lat,lon` rows (header optional) or the
// OurAirports layout with icao_code, ident, latitude_deg and longitude_deg
// columns. Built-in coordinates always take precedence.
func LoadCSV(r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	icaoCol, identCol, latCol, lonCol := 0, -1, 1, 2
	start := 0
	header := lowerAll(rows[0])
	if _, err := strconv.ParseFloat(strings.TrimSpace(rows[0][min(1, len(rows[0])-1)]), 64); err != nil {
		start = 1
		icaoCol = indexOf(header, "icao_code", "icao")
		identCol = indexOf(header, "ident")
		latCol = indexOf(header, "latitude_deg", "lat", "latitude")
		lonCol = indexOf(header, "longitude_deg", "lon", "longitude")
		if latCol < 0 || lonCol < 0 || (icaoCol < 0 && identCol < 0) {
			return 0, errors.New("unrecognised airports CSV header")
		}
	}

	parsed := make(map[string]Coords)
	for _, row := range rows[start:] {
		lat, errLat := parseCol(row, latCol)
		lon, errLon := parseCol(row, lonCol)
		if errLat != nil || errLon != nil {
			continue
		}
		c := Coords{Lat: lat, Lon: lon}
		if code := col(row, icaoCol); code != "" {
			parsed[code] = c
		}
		if ident := col(row, identCol); ident != "" {
			if _, ok := parsed[ident]; !ok {
				parsed[ident] = c
			}
		}
	}

	mu.Lock()
	for k, v := range parsed {
		extras[k] = v
	}
	mu.Unlock()
	return len(parsed), nil
}

// DistanceMiles is the haversine distance in statute miles.
func DistanceMiles(a, b Coords) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMi * math.Asin(math.Min(1, math.Sqrt(h)))
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}

func indexOf(header []string, names ...string) int {
	for _, n := range names {
		for i, h := range header {
			if h == n {
				return i
			}
		}
	}
	return -1
}

func col(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(row[i]))
}

func parseCol(row []string, i int) (float64, error) {
	if i < 0 || i >= len(row) {
		return 0, errors.New("missing column")
	}
	return strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
}
