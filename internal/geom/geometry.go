/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geom

// 3D world geometry for panel placement plus the 2D screen types used for hit-testing.
// Float values use float32 to match render engines.

import "math"

// Vec3 is a point or direction in metres.
type Vec3 struct{ X, Y, Z float32 }

func V(x, y, z float32) Vec3 { return Vec3{X: x, Y: y, Z: z} }

func (a Vec3) Add(b Vec3) Vec3      { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3      { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3) Scale(s float32) Vec3 { return Vec3{a.X * s, a.Y * s, a.Z * s} }
func (a Vec3) Dot(b Vec3) float32   { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }
func (a Vec3) Len() float32         { return float32(math.Sqrt(float64(a.Dot(a)))) }
func (a Vec3) Dist(b Vec3) float32  { return a.Sub(b).Len() }

// Lerp moves from a towards b by fraction t.
func (a Vec3) Lerp(b Vec3, t float32) Vec3 { return a.Add(b.Sub(a).Scale(t)) }

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{a.Y*b.Z - a.Z*b.Y, a.Z*b.X - a.X*b.Z, a.X*b.Y - a.Y*b.X}
}

// Normalize returns a unit vector; the zero vector is returned unchanged.
func (a Vec3) Normalize() Vec3 {
	l := a.Len()
	if l == 0 {
		return a
	}
	return a.Scale(1 / l)
}

// DistanceToSegment returns the distance from p to the segment a-b.
func DistanceToSegment(p, a, b Vec3) float32 {
	ab := b.Sub(a)
	den := ab.Dot(ab)
	if den == 0 {
		return p.Dist(a)
	}
	t := p.Sub(a).Dot(ab) / den
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return p.Dist(a.Add(ab.Scale(t)))
}

// Size3 is a box extent; Depth is zero for planes.
type Size3 struct{ W, H, Depth float32 }

// Quat is a unit rotation quaternion.
type Quat struct{ X, Y, Z, W float32 }

// IdentityQuat leaves vectors unchanged.
var IdentityQuat = Quat{W: 1}

// AxisAngle builds a rotation of rad radians around axis.
func AxisAngle(axis Vec3, rad float32) Quat {
	a := axis.Normalize()
	s := float32(math.Sin(float64(rad) / 2))
	return Quat{X: a.X * s, Y: a.Y * s, Z: a.Z * s, W: float32(math.Cos(float64(rad) / 2))}
}

func (q Quat) Mul(r Quat) Quat {
	return Quat{
		X: q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		Y: q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		Z: q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
		W: q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
	}
}

func (q Quat) Conj() Quat { return Quat{-q.X, -q.Y, -q.Z, q.W} }

// Rotate applies q to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	u := Vec3{q.X, q.Y, q.Z}
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(u.Cross(t))
}

// Pose is a rigid transform: rotate, then translate.
type Pose struct {
	Position Vec3
	Rotation Quat
}

// Identity is the origin pose.
var Identity = Pose{Rotation: IdentityQuat}

// At returns an unrotated pose at p.
func At(p Vec3) Pose { return Pose{Position: p, Rotation: IdentityQuat} }

// Apply maps a local point into the pose's parent space.
func (p Pose) Apply(v Vec3) Vec3 { return p.rot().Rotate(v).Add(p.Position) }

// Inverse returns the transform that undoes p.
func (p Pose) Inverse() Pose {
	inv := p.rot().Conj()
	return Pose{Position: inv.Rotate(p.Position.Scale(-1)), Rotation: inv}
}

// Forward is the pose's viewing direction (-Z, as in camera space).
func (p Pose) Forward() Vec3 { return p.rot().Rotate(Vec3{0, 0, -1}) }

func (p Pose) rot() Quat {
	if p.Rotation == (Quat{}) {
		return IdentityQuat
	}
	return p.Rotation
}

// Pt is a 2D screen point in pixels.
type Pt struct{ X, Y float32 }

// Rect is an axis-aligned screen rectangle defined by min corner and size.
type Rect struct {
	X, Y float32
	W, H float32
}

func R(x, y, w, h float32) Rect { return Rect{X: x, Y: y, W: w, H: h} }

func (r Rect) Contains(p Pt) bool {
	return p.X >= r.X && p.Y >= r.Y && p.X <= r.X+r.W && p.Y <= r.Y+r.H
}

// Center returns the middle of the rectangle.
func (r Rect) Center() Pt { return Pt{r.X + r.W/2, r.Y + r.H/2} }

// FloatRound rounds v to n decimal places deterministically.
func FloatRound(v float32, places int) float32 {
	if places < 0 {
		return v
	}
	pow := float32(math.Pow(10, float64(places)))
	return float32(math.Round(float64(v*pow))) / pow
}
