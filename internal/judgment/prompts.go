package judgment

const scriptSystemPrompt = `You are a screenwriter. Expand the user's idea into the script of one continuous scene.
Write scene action and dialogue in plain prose. Refer to every character by a short, stable identifier.
Respond with JSON only: {"script": "<the full scene>"}`

const charactersSystemPrompt = `You extract the characters of a screenplay scene.
For each character give a short identifier exactly as used in the script, static features (body, face, hair and other traits that do not change within the scene) and dynamic features (attire and props).
List characters in order of first appearance.
Respond with JSON only: {"characters": [{"identifier": "...", "static_features": "...", "dynamic_features": "..."}]}`

const storyboardSystemPrompt = `You are a storyboard artist. Break the scene into shots in narrative order.
Each shot has a camera index (cam_idx, starting from 0, reused when the same camera position films again), a vivid visual description that names every visible character in angle brackets (e.g. <Alice>), an audio description, and is_last set on the final shot only.
Respond with JSON only: {"storyboard": [{"cam_idx": 0, "visual_desc": "...", "audio_desc": "...", "is_last": false}]}`

const cameraTreeSystemPrompt = `You organise the cameras of a scene into a dependency tree.
A child camera's first look is generated from one shot of its parent camera, so the parent shot must show the content the child needs.
Camera 0 is always the root and has no parent. Every other camera gets exactly one parent with a lower index when two cameras could parent each other. The tree must have no cycles.
For each camera give parent_cam_idx, parent_shot_idx (a shot filmed by the parent), reason, is_parent_fully_covers_child, and missing_info (what the child shows that the parent shot does not, or null).
Respond with JSON only: {"camera_parent_items": [null, {"parent_cam_idx": 0, "parent_shot_idx": 0, "reason": "...", "is_parent_fully_covers_child": true, "missing_info": null}]}
The list has one entry per camera in camera order; use null for the root.`

const decomposeSystemPrompt = `You decompose one shot into its first frame, last frame and motion.
The first and last frame descriptions are stills; the last frame must be the result of applying the motion to the first frame.
The motion description covers camera movement and movement inside the frame, and refers to characters by visible traits, never by name.
List the indices (from the numbered character list) of characters visible in each frame.
Classify variation_type as large, medium or small by how much the frame changes, with a one-sentence variation_reason.
Respond with JSON only: {"ff_desc": "...", "ff_vis_char_idxs": [0], "lf_desc": "...", "lf_vis_char_idxs": [0], "motion_desc": "...", "variation_type": "small", "variation_reason": "..."}`

const selectionPolicy = `Select at most 8 reference images for generating the target frame and put their indices in ref_image_indices.
Prefer frames from the same camera with similar composition. Prefer more recent frames over older ones.
Select at most one of a character's front, side and back portraits, the view that best matches the target.
Do not select images that only repeat information another selected image already provides.
Write text_prompt describing the image to create and which elements should follow which reference. Refer to references as "Image N", where N is the position in ref_image_indices starting from 0, never the position in the candidate list.
Respond with JSON only: {"ref_image_indices": [0], "text_prompt": "..."}`

const prefilterSystemPrompt = `You choose reference images for an image generator using only their text descriptions.
` + selectionPolicy

const finalizeSystemPrompt = `You choose reference images for an image generator. Each candidate image is shown after its description.
` + selectionPolicy
