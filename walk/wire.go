package walk

import (
	"github.com/cpmech/sphcore/particle"
	"github.com/cpmech/sphcore/particlekind"
)

func kindFromFloat(f float64) particlekind.Kind {
	return particlekind.Kind(int(f))
}

// wire encoding for the two payload types that cross a rank boundary. Kept
// as flat []float64 buffers rather than a generic encoder (gosl/utl's
// Encoder, used by gofem for persisted state) since spec §6 states the
// payloads here are transient query/result records, not anything that
// needs format-agnostic persistence.

const queryWireWords = 15

func encodeQuery(e exportEntry) []float64 {
	q := e.Query
	exhausted := 0.0
	if q.Cursor.Exhausted {
		exhausted = 1.0
	}
	return []float64{
		float64(e.OriginIndex),
		q.Pos[0], q.Pos[1], q.Pos[2],
		q.Hsml,
		float64(q.Kind),
		q.Vel[0], q.Vel[1], q.Vel[2],
		float64(q.TimeBin),
		float64(q.Cursor.Node),
		exhausted,
		q.Density, q.Pressure,
		0, // reserved
	}
}

func decodeQuery(w []float64, fromRank int) exportEntry {
	return exportEntry{
		DestRank:    fromRank,
		OriginIndex: int(w[0]),
		Query: QueryRecord{
			TargetIndex: int(w[0]),
			Pos:         particle.Vec3{w[1], w[2], w[3]},
			Hsml:        w[4],
			Kind:        kindFromFloat(w[5]),
			Vel:         particle.Vec3{w[6], w[7], w[8]},
			TimeBin:     int(w[9]),
			Cursor:      NodeCursor{Node: int(w[10]), Exhausted: w[11] != 0},
			Density:     w[12],
			Pressure:    w[13],
		},
	}
}

const resultWireWords = 46

func encodeResult(e resultEnvelope) []float64 {
	r := e.Result
	w := make([]float64, 0, resultWireWords)
	w = append(w, float64(e.OriginIndex))
	w = append(w, r.Rho, r.DRhoDh, r.NNgb, r.DivV)
	w = append(w, r.CurlV[0], r.CurlV[1], r.CurlV[2])
	w = append(w, r.WeightedVel[0], r.WeightedVel[1], r.WeightedVel[2])
	w = append(w, r.DMax[:]...)
	w = append(w, r.DMin[:]...)
	w = append(w, r.GradRho[0], r.GradRho[1], r.GradRho[2])
	w = append(w, r.GradP[0], r.GradP[1], r.GradP[2])
	for k := 0; k < 3; k++ {
		w = append(w, r.GradV[k][0], r.GradV[k][1], r.GradV[k][2])
	}
	w = append(w, r.MaxDistance)
	for a := 0; a < 3; a++ {
		w = append(w, r.NVT[a][0], r.NVT[a][1], r.NVT[a][2])
	}
	return w
}

func decodeResult(w []float64) resultEnvelope {
	var r ResultRecord
	i := 1
	r.Rho, r.DRhoDh, r.NNgb, r.DivV = w[1], w[2], w[3], w[4]
	r.CurlV = particle.Vec3{w[5], w[6], w[7]}
	r.WeightedVel = particle.Vec3{w[8], w[9], w[10]}
	i = 11
	copy(r.DMax[:], w[i:i+5])
	i += 5
	copy(r.DMin[:], w[i:i+5])
	i += 5
	r.GradRho = particle.Vec3{w[i], w[i+1], w[i+2]}
	i += 3
	r.GradP = particle.Vec3{w[i], w[i+1], w[i+2]}
	i += 3
	for k := 0; k < 3; k++ {
		r.GradV[k] = particle.Vec3{w[i], w[i+1], w[i+2]}
		i += 3
	}
	r.MaxDistance = w[i]
	i++
	for a := 0; a < 3; a++ {
		r.NVT[a] = [3]float64{w[i], w[i+1], w[i+2]}
		i += 3
	}
	return resultEnvelope{OriginIndex: int(w[0]), Result: r}
}
