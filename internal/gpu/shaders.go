package gpu

// Pixels travel as one u32 per RGBA texel (little-endian byte order), so the
// raster buffer uploads without conversion and unpack4x8unorm yields
// straight-alpha channels in 0..1.

const resizeShader = `
struct Dims {
    src_w: u32,
    src_h: u32,
    dst_w: u32,
    dst_h: u32,
};

@group(0) @binding(0) var<uniform> dims: Dims;
@group(0) @binding(1) var<storage, read_write> src: array<u32>;
@group(0) @binding(2) var<storage, read_write> dst: array<u32>;

fn texel(x: i32, y: i32) -> vec4<f32> {
    let cx = clamp(x, 0, i32(dims.src_w) - 1);
    let cy = clamp(y, 0, i32(dims.src_h) - 1);
    return unpack4x8unorm(src[u32(cy) * dims.src_w + u32(cx)]);
}

@compute @workgroup_size(8, 8, 1)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    if (id.x >= dims.dst_w || id.y >= dims.dst_h) {
        return;
    }
    let sx = (f32(id.x) + 0.5) * f32(dims.src_w) / f32(dims.dst_w) - 0.5;
    let sy = (f32(id.y) + 0.5) * f32(dims.src_h) / f32(dims.dst_h) - 0.5;
    let x0 = floor(sx);
    let y0 = floor(sy);
    let fx = sx - x0;
    let fy = sy - y0;
    let ix = i32(x0);
    let iy = i32(y0);
    let top = mix(texel(ix, iy), texel(ix + 1, iy), fx);
    let bottom = mix(texel(ix, iy + 1), texel(ix + 1, iy + 1), fx);
    dst[id.y * dims.dst_w + id.x] = pack4x8unorm(mix(top, bottom, fy));
}
`

// gradeShader must stay in step with adjust.GradePixel.
const gradeShader = `
struct Globals {
    exposure_mul: f32,
    contrast: f32,
    highlights: f32,
    shadows: f32,
    whites: f32,
    blacks: f32,
    vibrance: f32,
    saturation: f32,
    temp: f32,
    tint: f32,
    pad0: f32,
    pad1: f32,
};

struct Dims {
    width: u32,
    height: u32,
    pad0: u32,
    pad1: u32,
};

@group(0) @binding(0) var<uniform> g: Globals;
@group(0) @binding(1) var<storage, read_write> pixels: array<u32>;
@group(0) @binding(2) var<uniform> dims: Dims;

fn luma(c: vec3<f32>) -> f32 {
    return dot(c, vec3<f32>(0.2126, 0.7152, 0.0722));
}

@compute @workgroup_size(8, 8, 1)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    if (id.x >= dims.width || id.y >= dims.height) {
        return;
    }
    let idx = id.y * dims.width + id.x;
    let src = unpack4x8unorm(pixels[idx]);

    var c = src.rgb * g.exposure_mul;

    c.r = c.r * (1.0 + g.temp * 0.5 + g.tint * 0.2);
    c.b = c.b * (1.0 - g.temp * 0.5 + g.tint * 0.2);
    c.g = c.g * (1.0 - g.tint * 0.2);

    let l0 = luma(c);
    let hi = max(l0 - 0.5, 0.0) * 2.0;
    let sh = max(0.5 - l0, 0.0) * 2.0;
    c = c * (1.0 + g.highlights * hi);
    c = c * (1.0 + g.shadows * sh);

    c = c + vec3<f32>(g.whites * 0.1);
    c = c - vec3<f32>(g.blacks * 0.1);

    c = (c - vec3<f32>(0.5)) * (1.0 + g.contrast) + vec3<f32>(0.5);

    let l1 = luma(c);
    let d = abs(c - vec3<f32>(l1));
    let vib_mask = clamp(1.0 - (d.r + d.g + d.b) / 3.0, 0.0, 1.0);
    c = vec3<f32>(l1) + (c - vec3<f32>(l1)) * (1.0 + g.saturation) * (1.0 + g.vibrance * vib_mask);

    c = clamp(c, vec3<f32>(0.0), vec3<f32>(1.0));
    pixels[idx] = pack4x8unorm(vec4<f32>(c, src.a));
}
`
