// Package speeds compresses weekly speed profiles.
//
// A profile is one expected speed per 5 minute bucket across a week: 288
// buckets a day, 2016 a week, bucket i covering day i/288 (Monday is day 0)
// and time of day (i%288)*5 minutes. Stored uncompressed that is 2016
// values per directed edge, which dominates everything else in a tile, so
// profiles are kept as the first 200 coefficients of a type II discrete
// cosine transform, quantized to int16:
//
//	c[k] = n * sum_b( x[b] * cos(pi/2016 * (b+0.5) * k) )   k in [0,200)
//	c[0] = c[0] / sqrt(2)
//
// with normalization n = sqrt(2/2016). Reconstruction is the matching type
// III transform:
//
//	x[b] = n * ( c[0]/sqrt(2) + sum_k( c[k] * cos(pi/2016 * (b+0.5) * k) ) )
//
// Truncating to 200 coefficients keeps the daily and rush hour harmonics
// that matter for speed prediction and discards high frequency noise; a
// smooth profile reconstructs within a fraction of a km/h. The quantized
// coefficients travel as a fixed 400 byte block of big endian int16 values,
// or as its standard base64 form (536 characters) where the surrounding
// format wants printable text.
package speeds

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	// BucketsPerDay is the number of 5 minute buckets in a day.
	BucketsPerDay = 288
	// DaysPerWeek with Monday as day 0.
	DaysPerWeek = 7
	// BucketsPerWeek is the sample count of a full weekly profile.
	BucketsPerWeek = BucketsPerDay * DaysPerWeek
	// BucketSeconds is the time span one bucket covers.
	BucketSeconds = 5 * 60

	// CoefficientCount is the fixed truncation of the transform.
	CoefficientCount = 200
	// EncodedBytes is the size of the serialized coefficient block.
	EncodedBytes = 2 * CoefficientCount
)

var (
	ErrProfileLen  = errors.New("speeds: a weekly profile has 2016 bucket samples")
	ErrBucketRange = errors.New("speeds: bucket index out of range")
	ErrEncoding    = errors.New("speeds: malformed coefficient block")
)

const invSqrt2 = 0.70710678118654752440

// normalization is sqrt(2/2016), shared by both transform directions.
var normalization = math.Sqrt(2.0 / BucketsPerWeek)

// bucketAngle is pi/2016, the angular step between adjacent buckets.
var bucketAngle = math.Pi / BucketsPerWeek

// Coefficients is a compressed weekly speed profile.
type Coefficients [CoefficientCount]int16

// Encode compresses a weekly profile of speeds in km/h. The profile must
// hold exactly BucketsPerWeek samples, one per 5 minute bucket starting at
// Monday midnight.
func Encode(kmh []float32) (Coefficients, error) {
	var c Coefficients
	if len(kmh) != BucketsPerWeek {
		return c, fmt.Errorf("%w, got %d", ErrProfileLen, len(kmh))
	}
	for k := 0; k < CoefficientCount; k++ {
		sum := 0.0
		for b, v := range kmh {
			sum += math.Cos(bucketAngle*(float64(b)+0.5)*float64(k)) * float64(v)
		}
		sum *= normalization
		if k == 0 {
			sum *= invSqrt2
		}
		c[k] = roundInt16(sum)
	}
	return c, nil
}

func roundInt16(v float64) int16 {
	v = math.Round(v)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// Decode reconstructs all BucketsPerWeek speeds.
func (c Coefficients) Decode() []float32 {
	out := make([]float32, BucketsPerWeek)
	for b := range out {
		out[b] = float32(c.speedAt(b))
	}
	return out
}

// SpeedAt reconstructs the speed of a single bucket.
func (c Coefficients) SpeedAt(bucket int) (float32, error) {
	if bucket < 0 || bucket >= BucketsPerWeek {
		return 0, fmt.Errorf("%w: %d", ErrBucketRange, bucket)
	}
	return float32(c.speedAt(bucket)), nil
}

func (c Coefficients) speedAt(bucket int) float64 {
	x := float64(c[0]) * invSqrt2
	arg := bucketAngle * (float64(bucket) + 0.5)
	for k := 1; k < CoefficientCount; k++ {
		x += float64(c[k]) * math.Cos(arg*float64(k))
	}
	return x * normalization
}

// BucketForSecondOfWeek maps a second offset from Monday midnight to its
// bucket, wrapping offsets beyond one week.
func BucketForSecondOfWeek(sec uint32) int {
	return int(sec/BucketSeconds) % BucketsPerWeek
}

// Bytes serializes the coefficients as EncodedBytes bytes, each value big
// endian.
func (c Coefficients) Bytes() []byte {
	b := make([]byte, EncodedBytes)
	for i, v := range c {
		binary.BigEndian.PutUint16(b[2*i:], uint16(v))
	}
	return b
}

// FromBytes reverses Bytes. The block length must match exactly.
func FromBytes(b []byte) (Coefficients, error) {
	var c Coefficients
	if len(b) != EncodedBytes {
		return c, fmt.Errorf("%w: %d bytes", ErrEncoding, len(b))
	}
	for i := range c {
		c[i] = int16(binary.BigEndian.Uint16(b[2*i:]))
	}
	return c, nil
}

// EncodeBase64 returns the standard base64 form of Bytes, 536 characters
// including padding.
func (c Coefficients) EncodeBase64() string {
	return base64.StdEncoding.EncodeToString(c.Bytes())
}

// DecodeBase64 reverses EncodeBase64.
func DecodeBase64(s string) (Coefficients, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		var c Coefficients
		return c, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return FromBytes(raw)
}
