/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package bus

import (
	"drawingtool/internal/domain"
	"drawingtool/internal/scene"
)

// Selected reports a selection change; Object is nil when cleared.
type Selected struct{ Object *scene.Object }

// DirtyChanged is published whenever the dirty flag flips.
type DirtyChanged struct{ Dirty bool }

// TransformEnd marks a committed, content or geometry changing interaction.
type TransformEnd struct{ Object *scene.Object }

// DragEnd is published after guides are cleared at the end of a drag.
type DragEnd struct{ Object *scene.Object }

// HideTransformer and ShowTransformer toggle handle visibility (text editing).
type (
	HideTransformer struct{}
	ShowTransformer struct{}
)

type Style string

const (
	StyleError Style = "error"
	StyleInfo  Style = "info"
)

// Notify is a user-facing message for the host notifier.
type Notify struct {
	Message string
	Style   Style
}

// Saved is published after a successful save.
type Saved struct{ Data domain.Data }
