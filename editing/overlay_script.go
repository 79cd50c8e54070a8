package editing

// overlayScript is evaluated in the page to draw field highlights and wire
// click/input listeners. It talks back to the host through the
// __formbot_on* bindings and exposes its commands on
// window.__FORMBOT_HIGHLIGHT. Evaluating it again tears down the previous
// instance first, so re-injection after navigation is safe.
const overlayScript = `
(function() {
  if (window.__FORMBOT_HIGHLIGHT && window.__FORMBOT_HIGHLIGHT.command_cleanup) {
    try { window.__FORMBOT_HIGHLIGHT.command_cleanup(); } catch (e) {}
  }

  var state = {
    fields: [],
    mode: 'select',
    overlays: [],
    listeners: [],
    inputListeners: []
  };

  var COLORS = {
    select: 'rgba(59, 130, 246, 0.85)',
    add: 'rgba(34, 197, 94, 0.85)',
    remove: 'rgba(239, 68, 68, 0.85)'
  };

  function describe(el) {
    var selector = cssPath(el);
    return {
      selector: selector,
      tagName: el.tagName.toLowerCase(),
      name: el.getAttribute('name') || '',
      id: el.id || '',
      type: el.getAttribute('type') || el.tagName.toLowerCase(),
      placeholder: el.getAttribute('placeholder') || '',
      value: readValue(el),
      label: labelFor(el)
    };
  }

  function labelFor(el) {
    if (el.id) {
      var lbl = document.querySelector('label[for="' + el.id + '"]');
      if (lbl) return lbl.textContent.trim();
    }
    var parent = el.closest('label');
    return parent ? parent.textContent.trim() : '';
  }

  function cssPath(el) {
    if (el.id) return '#' + CSS.escape(el.id);
    var name = el.getAttribute('name');
    if (name) {
      var sel = el.tagName.toLowerCase() + '[name="' + name + '"]';
      if (document.querySelectorAll(sel).length === 1) return sel;
    }
    var path = [];
    var node = el;
    while (node && node.nodeType === 1 && node !== document.body) {
      var part = node.tagName.toLowerCase();
      var siblings = node.parentNode ? Array.prototype.filter.call(
        node.parentNode.children,
        function(c) { return c.tagName === node.tagName; }
      ) : [];
      if (siblings.length > 1) {
        part += ':nth-of-type(' + (siblings.indexOf(node) + 1) + ')';
      }
      path.unshift(part);
      node = node.parentNode;
    }
    return path.join(' > ');
  }

  function readValue(el) {
    if (el.tagName === 'SELECT') return el.value;
    if (el.type === 'checkbox' || el.type === 'radio') return el.checked ? 'true' : 'false';
    return el.value || '';
  }

  function writeValue(el, value) {
    if (el.type === 'checkbox' || el.type === 'radio') {
      el.checked = value === 'true' || value === '1' || value === 'on';
    } else {
      var proto = el.tagName === 'TEXTAREA'
        ? window.HTMLTextAreaElement.prototype
        : el.tagName === 'SELECT'
          ? window.HTMLSelectElement.prototype
          : window.HTMLInputElement.prototype;
      var setter = Object.getOwnPropertyDescriptor(proto, 'value');
      if (setter && setter.set) { setter.set.call(el, value); } else { el.value = value; }
    }
    el.dispatchEvent(new Event('input', { bubbles: true }));
    el.dispatchEvent(new Event('change', { bubbles: true }));
  }

  function clearOverlays() {
    state.overlays.forEach(function(o) {
      if (o.parentNode) o.parentNode.removeChild(o);
    });
    state.overlays = [];
  }

  function drawOverlay(el, index) {
    var rect = el.getBoundingClientRect();
    if (rect.width === 0 && rect.height === 0) return;
    var box = document.createElement('div');
    box.setAttribute('data-formbot-overlay', String(index));
    box.style.cssText = [
      'position: absolute',
      'left: ' + (rect.left + window.scrollX - 2) + 'px',
      'top: ' + (rect.top + window.scrollY - 2) + 'px',
      'width: ' + (rect.width + 4) + 'px',
      'height: ' + (rect.height + 4) + 'px',
      'border: 2px solid ' + COLORS[state.mode],
      'border-radius: 4px',
      'pointer-events: none',
      'z-index: 2147483646',
      'box-sizing: border-box'
    ].join(';');
    var badge = document.createElement('span');
    badge.textContent = String(index + 1);
    badge.style.cssText = [
      'position: absolute',
      'top: -10px',
      'left: -10px',
      'background: ' + COLORS[state.mode],
      'color: white',
      'font: bold 11px sans-serif',
      'border-radius: 50%',
      'width: 18px',
      'height: 18px',
      'line-height: 18px',
      'text-align: center'
    ].join(';');
    box.appendChild(badge);
    document.body.appendChild(box);
    state.overlays.push(box);
  }

  function redraw() {
    clearOverlays();
    state.fields.forEach(function(field, index) {
      try {
        var el = document.querySelector(field.selector);
        if (el) drawOverlay(el, index);
      } catch (e) {}
    });
  }

  function fieldIndexOf(el) {
    for (var i = 0; i < state.fields.length; i++) {
      try {
        if (document.querySelector(state.fields[i].selector) === el) return i;
      } catch (e) {}
    }
    return -1;
  }

  function interactiveTarget(raw) {
    return raw.closest('input, textarea, select, button, [contenteditable]') || raw;
  }

  function onClick(ev) {
    var el = interactiveTarget(ev.target);
    if (el.hasAttribute && el.hasAttribute('data-formbot-overlay')) return;
    var index = fieldIndexOf(el);

    if (state.mode === 'select') {
      if (index < 0) return;
      ev.preventDefault();
      ev.stopPropagation();
      send('__formbot_onFieldSelected', { index: index, field: describe(el) });
    } else if (state.mode === 'add') {
      if (index >= 0) return;
      ev.preventDefault();
      ev.stopPropagation();
      send('__formbot_onFieldAdded', { field: describe(el) });
    } else if (state.mode === 'remove') {
      if (index < 0) return;
      ev.preventDefault();
      ev.stopPropagation();
      send('__formbot_onFieldRemoved', { index: index, selector: state.fields[index].selector });
    }
  }

  function onInput(ev) {
    var el = interactiveTarget(ev.target);
    var index = fieldIndexOf(el);
    if (index < 0) return;
    send('__formbot_onFieldValueChanged', {
      index: index,
      selector: state.fields[index].selector,
      value: readValue(el)
    });
  }

  function send(binding, data) {
    var fn = window[binding];
    if (typeof fn === 'function') {
      try { fn(JSON.stringify(data)); } catch (e) {}
    }
  }

  function flash(el, color) {
    var prev = el.style.outline;
    el.style.outline = '3px solid ' + color;
    setTimeout(function() { el.style.outline = prev; }, 1200);
  }

  function listen(target, type, handler, capture) {
    target.addEventListener(type, handler, capture);
    state.listeners.push([target, type, handler, capture]);
  }

  var api = {
    init: function(fields) {
      state.fields = fields || [];
      listen(document, 'click', onClick, true);
      listen(document, 'input', onInput, true);
      listen(window, 'scroll', redraw, true);
      listen(window, 'resize', redraw, false);
      redraw();
    },

    command_setMode: function(mode) {
      state.mode = mode;
      redraw();
    },

    command_updateFields: function(fields) {
      state.fields = fields || [];
      redraw();
    },

    command_focusField: function(index) {
      var field = state.fields[index];
      if (!field) return;
      try {
        var el = document.querySelector(field.selector);
        if (!el) return;
        el.scrollIntoView({ behavior: 'smooth', block: 'center' });
        flash(el, COLORS.select);
      } catch (e) {}
    },

    command_testSelector: function(selector) {
      try {
        var matches = document.querySelectorAll(selector);
        Array.prototype.forEach.call(matches, function(el) {
          flash(el, 'rgba(34, 197, 94, 0.95)');
        });
        return { found: matches.length > 0, matchCount: matches.length };
      } catch (e) {
        return { found: false, matchCount: 0 };
      }
    },

    command_fillField: function(index, value) {
      var field = state.fields[index];
      if (!field) return;
      try {
        var el = document.querySelector(field.selector);
        if (el) writeValue(el, value);
      } catch (e) {}
    },

    command_readFieldValue: function(index) {
      var field = state.fields[index];
      if (!field) return '';
      try {
        var el = document.querySelector(field.selector);
        return el ? readValue(el) : '';
      } catch (e) {
        return '';
      }
    },

    command_cleanup: function() {
      clearOverlays();
      state.listeners.forEach(function(l) {
        l[0].removeEventListener(l[1], l[2], l[3]);
      });
      state.listeners = [];
      delete window.__FORMBOT_HIGHLIGHT;
    }
  };

  window.__FORMBOT_HIGHLIGHT = api;
})();
`
