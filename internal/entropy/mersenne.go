package entropy

const (
	mtN         = 624
	mtM         = 397
	mtMatrixA   = 0x9908b0df
	mtUpperMask = 0x80000000
	mtLowerMask = 0x7fffffff
)

// MersenneTwister is an MT19937 generator. It is not safe for concurrent use;
// wrap it with NewLocked when it has to be shared.
type MersenneTwister struct {
	state [mtN]uint32
	index int
}

// NewMersenneTwister seeds a generator with the reference init_genrand
// procedure, so sequences match other MT19937 implementations.
func NewMersenneTwister(seed uint32) *MersenneTwister {
	mt := &MersenneTwister{}
	mt.Seed(seed)
	return mt
}

func (mt *MersenneTwister) Seed(seed uint32) {
	mt.state[0] = seed
	for i := 1; i < mtN; i++ {
		prev := mt.state[i-1]
		mt.state[i] = 1812433253*(prev^(prev>>30)) + uint32(i)
	}
	mt.index = mtN
}

// Uint32 returns the next tempered 32-bit output.
func (mt *MersenneTwister) Uint32() uint32 {
	if mt.index >= mtN {
		mt.twist()
	}
	y := mt.state[mt.index]
	mt.index++

	y ^= y >> 11
	y ^= (y << 7) & 0x9d2c5680
	y ^= (y << 15) & 0xefc60000
	y ^= y >> 18
	return y
}

// Float64 maps the next output onto [0, 1).
func (mt *MersenneTwister) Float64() float64 {
	return float64(mt.Uint32()) / 4294967296.0
}

func (mt *MersenneTwister) twist() {
	for i := 0; i < mtN; i++ {
		y := (mt.state[i] & mtUpperMask) | (mt.state[(i+1)%mtN] & mtLowerMask)
		next := mt.state[(i+mtM)%mtN] ^ (y >> 1)
		if y&1 != 0 {
			next ^= mtMatrixA
		}
		mt.state[i] = next
	}
	mt.index = 0
}
