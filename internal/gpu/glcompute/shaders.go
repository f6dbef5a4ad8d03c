package glcompute

import (
	"fmt"
	"strings"

	"github.com/Faultbox/midgard-details/internal/gpu"
)

// Binding points of the shader storage blocks, shared by every program.
var bindingPoints = map[string]uint32{
	gpu.BindPositions:      0,
	gpu.BindTransforms:     1,
	gpu.BindColors:         2,
	gpu.BindInstanceInfos:  3,
	gpu.BindTypeInfos:      4,
	gpu.BindLODThresholds:  5,
	gpu.BindDrawArgs:       6,
	gpu.BindTuples:         7,
	gpu.BindTempTuples:     8,
	gpu.BindCounter:        9,
	gpu.BindHistogramTable: 10,
	gpu.BindPrefixScan:     11,
	gpu.BindDepthPyramid:   12,
	gpu.BindSHAr:           13,
	gpu.BindSHAg:           14,
	gpu.BindSHAb:           15,
	gpu.BindSHBr:           16,
	gpu.BindSHBg:           17,
	gpu.BindSHBb:           18,
	gpu.BindSHC:            19,
	gpu.BindOcclusion:      20,
}

func maxBindingPoint() int32 {
	var hi uint32
	for _, p := range bindingPoints {
		hi = max(hi, p)
	}
	return int32(hi)
}

// required lists the bindings a kernel cannot run without.
var required = map[gpu.Kernel][]string{
	gpu.KernelCull: {
		gpu.BindPositions, gpu.BindTransforms, gpu.BindInstanceInfos,
		gpu.BindTypeInfos, gpu.BindLODThresholds, gpu.BindTuples, gpu.BindCounter,
	},
	gpu.KernelHistogram:   {gpu.BindTuples, gpu.BindHistogramTable},
	gpu.KernelColumnScan:  {gpu.BindHistogramTable, gpu.BindPrefixScan},
	gpu.KernelPrefixScan:  {gpu.BindPrefixScan},
	gpu.KernelPrefixTable: {gpu.BindHistogramTable, gpu.BindPrefixScan},
	gpu.KernelFillArgs:    {gpu.BindPrefixScan, gpu.BindTypeInfos, gpu.BindDrawArgs},
	gpu.KernelRearrange:   {gpu.BindTuples, gpu.BindTempTuples, gpu.BindHistogramTable},
}

// MaxHiZLevels is the size of the pyramid level table uniform.
const MaxHiZLevels = 16

func block(name, member string) string {
	return fmt.Sprintf("layout(std430, binding = %d) buffer %sBlock { %s %s[]; };\n",
		bindingPoints[name], strings.TrimPrefix(name, "_"), member, name)
}

// computeHeader declares the storage blocks and uniforms of every kernel.
func computeHeader() string {
	var b strings.Builder
	b.WriteString("#version 430 core\n")
	fmt.Fprintf(&b, "layout(local_size_x = %d) in;\n", gpu.GroupSize)
	fmt.Fprintf(&b, "#define DIST_TYPE_SIZE %du\n#define DIST_TYPE_MASK %du\n", gpu.DistTypeSize, gpu.DistTypeMask)
	fmt.Fprintf(&b, "#define MAX_LOD_COUNTS %du\n#define MAX_PROTOTYPES %du\n#define ARGS_STRIDE %du\n",
		gpu.MaxLODCounts, gpu.MaxPrototypes, gpu.ArgsStride)
	fmt.Fprintf(&b, "#define MAX_HIZ_LEVELS %d\n", MaxHiZLevels)

	b.WriteString(block(gpu.BindPositions, "vec4"))
	b.WriteString(block(gpu.BindTransforms, "vec4"))
	b.WriteString(block(gpu.BindInstanceInfos, "uint"))
	b.WriteString(block(gpu.BindTypeInfos, "uint"))
	b.WriteString(block(gpu.BindLODThresholds, "float"))
	b.WriteString(block(gpu.BindDrawArgs, "uint"))
	b.WriteString(block(gpu.BindTuples, "uvec4"))
	b.WriteString(block(gpu.BindTempTuples, "uvec4"))
	b.WriteString(block(gpu.BindCounter, "uint"))
	b.WriteString(block(gpu.BindHistogramTable, "uint"))
	b.WriteString(block(gpu.BindPrefixScan, "uint"))
	b.WriteString(block(gpu.BindDepthPyramid, "float"))
	b.WriteString(computeUniforms)
	return b.String()
}

const computeUniforms = `
uniform mat4 _ViewProj;
uniform vec4 _FrustumPlanes[6];
uniform vec3 _CameraPos;
uniform float _BoundingBoxRadius;
uniform float _MaxCullingDistance;
uniform int _EnableCull;
uniform int _ReversedZ;
uniform ivec4 _HiZLevels[MAX_HIZ_LEVELS];
uniform int _HiZLevelCount;
uniform int _VertexCount;
uniform int _ResultCount;
uniform int _TypeCount;
uniform int _Groups;
uniform int _Digit;

uint DigitOf(uvec4 t) {
	if (_Digit == 1) {
		return (t.z * MAX_LOD_COUNTS + t.w) & DIST_TYPE_MASK;
	}
	if (_MaxCullingDistance <= 0.0) {
		return 0u;
	}
	int b = int(floor(uintBitsToFloat(t.y) / _MaxCullingDistance * float(DIST_TYPE_SIZE)));
	return uint(clamp(b, 0, int(DIST_TYPE_MASK)));
}
`

const cullSource = `
float DepthAt(ivec4 level, int x, int y) {
	return _DepthMipmapTexture[level.z + y * level.x + x];
}

bool Occluded(vec3 center, float radius) {
	if (_HiZLevelCount <= 0) {
		return false;
	}
	vec2 lo = vec2(1.0);
	vec2 hi = vec2(0.0);
	float nearest = _ReversedZ != 0 ? 0.0 : 1.0;
	for (int c = 0; c < 8; c++) {
		vec3 s = vec3((c & 1) != 0 ? 1.0 : -1.0, (c & 2) != 0 ? 1.0 : -1.0, (c & 4) != 0 ? 1.0 : -1.0);
		vec4 clip = _ViewProj * vec4(center + radius * s, 1.0);
		if (clip.w <= 1e-5) {
			return false;
		}
		vec3 ndc = clip.xyz / clip.w;
		vec2 uv = clamp(ndc.xy * 0.5 + 0.5, 0.0, 1.0);
		float z = ndc.z * 0.5 + 0.5;
		lo = min(lo, uv);
		hi = max(hi, uv);
		nearest = _ReversedZ != 0 ? max(nearest, z) : min(nearest, z);
	}

	ivec4 base = _HiZLevels[0];
	float extent = max((hi.x - lo.x) * float(base.x), (hi.y - lo.y) * float(base.y));
	int level = extent > 1.0 ? int(ceil(log2(extent))) : 0;
	level = min(level, _HiZLevelCount - 1);
	ivec4 l = _HiZLevels[level];

	int x0 = min(int(lo.x * float(base.x)) >> level, l.x - 1);
	int x1 = min(int(hi.x * float(base.x)) >> level, l.x - 1);
	int y0 = min(int(lo.y * float(base.y)) >> level, l.y - 1);
	int y1 = min(int(hi.y * float(base.y)) >> level, l.y - 1);

	float farthest = DepthAt(l, x0, y0);
	for (int y = y0; y <= y1; y++) {
		for (int x = x0; x <= x1; x++) {
			float d = DepthAt(l, x, y);
			farthest = _ReversedZ != 0 ? min(farthest, d) : max(farthest, d);
		}
	}
	return _ReversedZ != 0 ? nearest < farthest : nearest > farthest;
}

void main() {
	uint i = gl_GlobalInvocationID.x;
	if (i >= uint(_VertexCount)) {
		return;
	}
	vec3 pos = _AllInstancePositions[i].xyz;
	float dist = distance(pos, _CameraPos);
	if (dist > _MaxCullingDistance) {
		return;
	}
	uint t = _AllInstanceInfos[i];
	if (t >= uint(_TypeCount)) {
		return;
	}

	if (_EnableCull != 0) {
		vec4 tr = _AllInstanceTransforms[i];
		float radius = _BoundingBoxRadius * max(tr.x, tr.y);
		for (int p = 0; p < 6; p++) {
			if (dot(_FrustumPlanes[p].xyz, pos) + _FrustumPlanes[p].w < -radius) {
				return;
			}
		}
		if (Occluded(pos, radius)) {
			return;
		}
	}

	uint lod = MAX_LOD_COUNTS - 1u;
	for (uint j = 0u; j < MAX_LOD_COUNTS; j++) {
		if (dist < _TypeLodThresholds[t * MAX_LOD_COUNTS + j]) {
			lod = j;
			break;
		}
	}
	uint lodCount = _AllTypesInfos[t * 2u + 1u];
	lod = lodCount == 0u ? 0u : min(lod, lodCount - 1u);

	uint slot = atomicAdd(_Counter[0], 1u);
	if (slot >= uint(_IndicesDistancesTypesLods.length())) {
		return;
	}
	_IndicesDistancesTypesLods[slot] = uvec4(i, floatBitsToUint(dist), t, lod);
}
`

const histogramSource = `
shared uint counts[DIST_TYPE_SIZE];

void main() {
	uint lid = gl_LocalInvocationID.x;
	uint g = gl_WorkGroupID.x;
	counts[lid] = 0u;
	barrier();

	uint i = gl_GlobalInvocationID.x;
	if (i < uint(_ResultCount)) {
		atomicAdd(counts[DigitOf(_IndicesDistancesTypesLods[i])], 1u);
	}
	barrier();

	if (g < uint(_Groups)) {
		_HistogramTable[lid * uint(_Groups) + g] = counts[lid];
	}
}
`

const columnScanSource = `
void main() {
	uint b = gl_LocalInvocationID.x;
	uint groups = uint(_Groups);
	uint sum = 0u;
	for (uint g = 0u; g < groups; g++) {
		uint v = _HistogramTable[b * groups + g];
		_HistogramTable[b * groups + g] = sum;
		sum += v;
	}
	_PrefixScan[b] = sum;
}
`

const prefixScanSource = `
shared uint scan[DIST_TYPE_SIZE];

void main() {
	uint lid = gl_LocalInvocationID.x;
	uint own = _PrefixScan[lid];
	scan[lid] = own;
	barrier();

	for (uint off = 1u; off < DIST_TYPE_SIZE; off <<= 1) {
		uint v = lid >= off ? scan[lid - off] : 0u;
		barrier();
		scan[lid] += v;
		barrier();
	}

	_PrefixScan[lid] = scan[lid] - own;
	if (lid == DIST_TYPE_SIZE - 1u) {
		_PrefixScan[DIST_TYPE_SIZE] = scan[lid];
	}
}
`

const prefixTableSource = `
void main() {
	uint i = gl_GlobalInvocationID.x;
	uint groups = uint(_Groups);
	if (i < DIST_TYPE_SIZE * groups) {
		_HistogramTable[i] += _PrefixScan[i / groups];
	}
}
`

const fillArgsSource = `
void main() {
	uint slot = gl_LocalInvocationID.x;
	uint t = slot / MAX_LOD_COUNTS;
	uint l = slot % MAX_LOD_COUNTS;
	if (t >= min(uint(_TypeCount), MAX_PROTOTYPES)) {
		return;
	}
	if (l >= min(_AllTypesInfos[t * 2u + 1u], MAX_LOD_COUNTS)) {
		return;
	}
	_DrawIndirectArgs[slot * ARGS_STRIDE + 1u] = _PrefixScan[slot + 1u] - _PrefixScan[slot];
	_DrawIndirectArgs[slot * ARGS_STRIDE + 4u] = _PrefixScan[slot];
}
`

const rearrangeSource = `
shared uint digits[DIST_TYPE_SIZE];

void main() {
	uint lid = gl_LocalInvocationID.x;
	uint g = gl_WorkGroupID.x;
	uint i = gl_GlobalInvocationID.x;

	bool live = i < uint(_ResultCount);
	uvec4 t = live ? _IndicesDistancesTypesLods[i] : uvec4(0u);
	uint d = live ? DigitOf(t) : 0xFFFFFFFFu;
	digits[lid] = d;
	barrier();

	if (!live) {
		return;
	}
	uint rank = 0u;
	for (uint j = 0u; j < lid; j++) {
		if (digits[j] == d) {
			rank++;
		}
	}
	uint at = _HistogramTable[d * uint(_Groups) + g] + rank;
	_TempIndicesDistancesTypesLods[at] = t;
}
`

var kernelSources = map[gpu.Kernel]string{
	gpu.KernelCull:        cullSource,
	gpu.KernelHistogram:   histogramSource,
	gpu.KernelColumnScan:  columnScanSource,
	gpu.KernelPrefixScan:  prefixScanSource,
	gpu.KernelPrefixTable: prefixTableSource,
	gpu.KernelFillArgs:    fillArgsSource,
	gpu.KernelRearrange:   rearrangeSource,
}

// KernelSource returns the complete GLSL of a kernel.
func KernelSource(k gpu.Kernel) (string, bool) {
	body, ok := kernelSources[k]
	if !ok {
		return "", false
	}
	return computeHeader() + body, true
}

// drawVertexSource expands the sorted tuple of each instance into its
// world transform and lights it with the instance's packed probe.
func drawVertexSource() string {
	var b strings.Builder
	b.WriteString("#version 430 core\n")
	b.WriteString(block(gpu.BindPositions, "vec4"))
	b.WriteString(block(gpu.BindTransforms, "vec4"))
	b.WriteString(block(gpu.BindColors, "vec4"))
	for _, name := range []string{
		gpu.BindSHAr, gpu.BindSHAg, gpu.BindSHAb,
		gpu.BindSHBr, gpu.BindSHBg, gpu.BindSHBb,
		gpu.BindSHC, gpu.BindOcclusion,
	} {
		b.WriteString(block(name, "vec4"))
	}
	b.WriteString(drawVertexBody)
	return b.String()
}

const drawVertexBody = `
layout(location = 0) in vec3 aPosition;
layout(location = 1) in vec3 aNormal;
layout(location = 2) in vec2 aUV;
layout(location = 3) in uvec4 aTuple;

uniform mat4 _ViewProj;
uniform vec3 _LightDir;
uniform int _EnableProbes;

out vec3 vColor;
out vec2 vUV;

vec3 ShadeProbe(uint i, vec3 n) {
	vec4 n4 = vec4(n, 1.0);
	vec3 x1 = vec3(dot(_AllVertexSHAr[i], n4), dot(_AllVertexSHAg[i], n4), dot(_AllVertexSHAb[i], n4));
	vec4 vb = n.xyzz * n.yzzx;
	vec3 x2 = vec3(dot(_AllVertexSHBr[i], vb), dot(_AllVertexSHBg[i], vb), dot(_AllVertexSHBb[i], vb));
	vec3 x3 = _AllVertexSHC[i].rgb * (n.x * n.x - n.y * n.y);
	return max(x1 + x2 + x3, vec3(0.0));
}

void main() {
	uint i = aTuple.x;
	vec3 pos = _AllInstancePositions[i].xyz;
	vec4 tr = _AllInstanceTransforms[i];
	float s = sin(tr.z);
	float c = cos(tr.z);

	vec3 local = aPosition * vec3(tr.x, tr.y, tr.x);
	vec3 world = pos + vec3(c * local.x + s * local.z, local.y, -s * local.x + c * local.z);
	vec3 normal = normalize(vec3(c * aNormal.x + s * aNormal.z, aNormal.y, -s * aNormal.x + c * aNormal.z));

	vec3 ambient = vec3(0.35);
	if (_EnableProbes != 0) {
		ambient = ShadeProbe(i, normal) * _AllVertexOcclusionProbes[i].x;
	}
	float sun = max(dot(normal, -_LightDir), 0.0) * 0.5 + 0.5;
	vec3 base = mix(vec3(0.18, 0.35, 0.08), vec3(0.45, 0.6, 0.2), aUV.y);

	vColor = base * _AllInstanceColors[i].rgb * (ambient + vec3(sun * 0.6));
	vUV = aUV;
	gl_Position = _ViewProj * vec4(world, 1.0);
}
`

const drawFragmentSource = `#version 430 core
in vec3 vColor;
in vec2 vUV;
out vec4 FragColor;

void main() {
	FragColor = vec4(vColor, 1.0);
}
`
